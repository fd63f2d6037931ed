package gateway

import (
	"context"

	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/plan"
)

// Router is the server-side trust boundary: it re-checks the plan table
// before dispatching, so a client that skips its own check gains nothing.
type Router struct {
	dispatcher *Dispatcher
}

func NewRouter(d *Dispatcher) *Router {
	return &Router{dispatcher: d}
}

// Run authorizes requested against p and dispatches. An empty requested
// model means "whatever the plan grants". history is optional prior context.
func (r *Router) Run(ctx context.Context, p plan.Plan, requested plan.Model, prompt string, history ...ai.Message) (*Result, error) {
	if requested == "" {
		m, err := plan.ModelFor(p)
		if err != nil {
			return nil, err
		}
		requested = m
	}
	if err := plan.Authorize(p, requested).Err(); err != nil {
		return nil, err
	}
	return r.dispatcher.Dispatch(ctx, prompt, requested, history...)
}
