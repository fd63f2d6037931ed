package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CompatProvider talks to any OpenAI style /chat/completions endpoint. The
// Grok gateway (api.x.ai) speaks this dialect.
type CompatProvider struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type compatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatChatReq struct {
	Model    string      `json:"model"`
	Messages []compatMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type compatChatResp struct {
	Choices []struct {
		Message compatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewCompatProvider(name, baseURL, apiKey, model string, timeout time.Duration) *CompatProvider {
	if name == "" {
		name = "grok"
	}
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	return &CompatProvider{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  newHTTPClient(timeout),
	}
}

func (p *CompatProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", fmt.Errorf("%s: http client is nil", p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", fmt.Errorf("%s: api key is required (set %s_API_KEY)", p.Name, strings.ToUpper(p.Name))
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", fmt.Errorf("%s: model is required", p.Name)
	}

	reqBody := compatChatReq{
		Model:  model,
		Stream: false,
		Messages: func() []compatMsg {
			out := make([]compatMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, compatMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", &StatusError{Provider: p.Name, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded compatChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", p.Name)
	}
	return decoded.Choices[0].Message.Content, nil
}
