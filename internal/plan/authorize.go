package plan

import (
	"fmt"

	"github.com/lazycook/chat-platform/internal/apperr"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Plan     Plan
	Model    Model
	Allowed  bool
	Required Plan   // plan that would grant Model; empty when Model is unknown
	Reason   string // set when denied
}

// Authorize allows m only when it is exactly the model mapped from p.
// It has no side effects.
func Authorize(p Plan, m Model) Decision {
	d := Decision{Plan: p, Model: m}

	allowed, err := ModelFor(p)
	if err != nil {
		d.Reason = fmt.Sprintf("unknown plan %q", string(p))
		return d
	}
	if m == allowed {
		d.Allowed = true
		return d
	}

	required, err := RequiredPlan(m)
	if err != nil {
		d.Reason = fmt.Sprintf("unknown model %q", string(m))
		return d
	}
	d.Required = required
	d.Reason = fmt.Sprintf("model %s requires the %s plan; upgrade to access this AI", m, required)
	return d
}

// Err returns nil for an allowed decision and a plan-denied error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.New(apperr.KindPlanDenied, "plan.Authorize", d.Reason)
}
