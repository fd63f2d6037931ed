// Package client talks to the API server on behalf of the terminal chat app.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/lazycook/chat-platform/internal/plan"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client

	mu    sync.RWMutex
	token string
	plan  plan.Plan
}

type Profile struct {
	UserID uint64     `json:"user_id"`
	Email  string     `json:"email"`
	Plan   plan.Plan  `json:"plan"`
	Model  plan.Model `json:"model"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *Client) Plan() plan.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

func (c *Client) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Login exchanges credentials for a token and remembers the plan it carries.
func (c *Client) Login(ctx context.Context, email, password string) (*Profile, error) {
	var out struct {
		Token  string    `json:"access_token"`
		UserID uint64    `json:"user_id"`
		Email  string    `json:"email"`
		Plan   plan.Plan `json:"plan"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = out.Token
	c.plan = out.Plan
	c.mu.Unlock()

	m, _ := plan.ModelFor(out.Plan)
	return &Profile{UserID: out.UserID, Email: out.Email, Plan: out.Plan, Model: m}, nil
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type runRequest struct {
	Prompt  string       `json:"prompt"`
	Model   plan.Model   `json:"model,omitempty"`
	History []ai.Message `json:"history,omitempty"`
}

// Complete runs one plan-gated completion with the chat's earlier turns. It
// satisfies chat.Dispatcher.
func (c *Client) Complete(ctx context.Context, prompt string, model plan.Model, history []ai.Message) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	body := runRequest{Prompt: prompt, Model: model, History: history}
	if err := c.do(ctx, http.MethodPost, "/ai/run", body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	const op = "client.do"

	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	token, p := c.token, c.plan
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if p != "" {
		req.Header.Set("X-Plan", string(p))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindGateway, op, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperr.Wrap(apperr.KindGateway, op, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return apperr.New(apperr.KindAuth, op, env.Message)
	case resp.StatusCode == http.StatusForbidden:
		return apperr.New(apperr.KindPlanDenied, op, env.Message)
	case resp.StatusCode >= 300:
		return apperr.New(apperr.KindGateway, op, fmt.Sprintf("%s (status %d)", env.Message, resp.StatusCode))
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
