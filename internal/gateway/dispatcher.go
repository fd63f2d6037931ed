// Package gateway turns an authorized (prompt, model) pair into upstream
// provider calls.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/lazycook/chat-platform/internal/plan"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyPrompt = errors.New("prompt is required")

// Part is the outcome of one upstream call. Err is empty on success.
type Part struct {
	Model    plan.Model `json:"model"`
	Response string     `json:"response,omitempty"`
	Err      string     `json:"error,omitempty"`
}

type Result struct {
	Model    plan.Model `json:"model"`
	Response string     `json:"response"`
	Parts    []Part     `json:"parts,omitempty"`
}

// Dispatcher issues gateway calls. It does not check plans; see Router.
type Dispatcher struct {
	registry *ai.Registry
}

func NewDispatcher(registry *ai.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch makes one call per underlying gateway, with no retry. history is
// the earlier conversation, oldest first; prompt is appended as the final
// user turn. Any failure is returned as an apperr.KindGateway error.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, model plan.Model, history ...ai.Message) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	switch model {
	case plan.Gemini, plan.Grok:
		text, err := d.call(ctx, model, conversation(history, prompt))
		if err != nil {
			return nil, err
		}
		return &Result{Model: model, Response: text}, nil
	case plan.Mixed:
		return d.mixed(ctx, conversation(history, prompt))
	}
	return nil, fmt.Errorf("%w: %q", plan.ErrUnknownModel, string(model))
}

// Complete is Dispatch reduced to the reply text. It satisfies
// chat.Dispatcher.
func (d *Dispatcher) Complete(ctx context.Context, prompt string, model plan.Model, history []ai.Message) (string, error) {
	res, err := d.Dispatch(ctx, prompt, model, history...)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

func conversation(history []ai.Message, prompt string) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, ai.Message{Role: "user", Content: prompt})
}

func (d *Dispatcher) call(ctx context.Context, model plan.Model, msgs []ai.Message) (string, error) {
	op := "gateway." + string(model)

	p, err := d.registry.Get(ctx, string(model))
	if err != nil {
		return "", apperr.Wrap(apperr.KindGateway, op, err)
	}
	text, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGateway, op, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.KindGateway, op, "empty response")
	}
	return text, nil
}

// mixed calls gemini and grok side by side. A failing half is recorded in
// its Part and does not cancel the other; only the caller's own
// cancellation fails the group.
func (d *Dispatcher) mixed(ctx context.Context, msgs []ai.Message) (*Result, error) {
	halves := []plan.Model{plan.Gemini, plan.Grok}
	parts := make([]Part, len(halves))
	errs := make([]error, len(halves))

	var g errgroup.Group
	for i, m := range halves {
		i, m := i, m
		g.Go(func() error {
			text, err := d.call(ctx, m, msgs)
			parts[i] = Part{Model: m, Response: text}
			if err != nil {
				parts[i].Err = apperr.Detail(err)
				errs[i] = err
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "gateway.mixed", err)
	}

	if errs[0] != nil && errs[1] != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindGateway,
			Op:      "gateway.mixed",
			Message: "all gateways failed",
			Err:     errors.Join(errs...),
		}
	}
	return &Result{Model: plan.Mixed, Response: combine(parts), Parts: parts}, nil
}

func label(m plan.Model) string {
	switch m {
	case plan.Gemini:
		return "Gemini"
	case plan.Grok:
		return "Grok"
	}
	return string(m)
}

func combine(parts []Part) string {
	var ok, failed []Part
	for _, p := range parts {
		if p.Err != "" {
			failed = append(failed, p)
		} else {
			ok = append(ok, p)
		}
	}

	var sb strings.Builder
	if len(failed) == 0 {
		for i, p := range ok {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "### %s\n%s", label(p.Model), p.Response)
		}
		return sb.String()
	}

	for _, p := range ok {
		sb.WriteString(p.Response)
	}
	for _, p := range failed {
		fmt.Fprintf(&sb, "\n\n_(%s response unavailable: %s)_", label(p.Model), p.Err)
	}
	return sb.String()
}
