// Package ai holds the HTTP clients for the upstream model gateways.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends one conversation to a model and returns the reply text.
// Implementations make exactly one HTTP call and never retry.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StatusError is returned for non-2xx gateway answers.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

const defaultTimeout = 90 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
