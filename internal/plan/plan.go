// Package plan holds the closed subscription table that gates which model a
// user may invoke. The same table is consulted by the API server, the
// server-side chat sessions and the Go client.
package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownPlan  = errors.New("unknown plan")
	ErrUnknownModel = errors.New("invalid model")
)

// Plan is a subscription tier.
type Plan string

const (
	Go    Plan = "GO"
	Pro   Plan = "PRO"
	Ultra Plan = "ULTRA"
)

// Model names one upstream route.
type Model string

const (
	Gemini Model = "gemini"
	Grok   Model = "grok"
	Mixed  Model = "mixed"
)

// Plans returns every tier, cheapest first.
func Plans() []Plan { return []Plan{Go, Pro, Ultra} }

// Models returns every routable model.
func Models() []Model { return []Model{Gemini, Grok, Mixed} }

func (p Plan) String() string  { return string(p) }
func (m Model) String() string { return string(m) }

// Valid reports whether p is one of the closed tiers.
func (p Plan) Valid() bool {
	switch p {
	case Go, Pro, Ultra:
		return true
	}
	return false
}

// Valid reports whether m is one of the closed models.
func (m Model) Valid() bool {
	switch m {
	case Gemini, Grok, Mixed:
		return true
	}
	return false
}

// ModelFor returns the single model a plan grants.
func ModelFor(p Plan) (Model, error) {
	switch p {
	case Go:
		return Gemini, nil
	case Pro:
		return Grok, nil
	case Ultra:
		return Mixed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlan, string(p))
}

// RequiredPlan returns the plan that grants m.
func RequiredPlan(m Model) (Plan, error) {
	switch m {
	case Gemini:
		return Go, nil
	case Grok:
		return Pro, nil
	case Mixed:
		return Ultra, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, string(m))
}

// ParsePlan accepts any casing and surrounding whitespace.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return p, nil
}

var modelAliases = map[string]Model{
	"gemini":    Gemini,
	"grok":      Grok,
	"mixed":     Mixed,
	"ai_type_1": Gemini,
	"ai_type_2": Grok,
	"ai_type_3": Mixed,
}

// ParseModel normalizes a client supplied model name, including the legacy
// ai_type_N aliases.
func ParseModel(s string) (Model, error) {
	m, ok := modelAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return m, nil
}
