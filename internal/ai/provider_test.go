package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompatProvider_Chat(t *testing.T) {
	var got compatChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi from grok"}}]}`))
	}))
	defer srv.Close()

	p := NewCompatProvider("grok", srv.URL+"/", "k", "grok-2-latest", time.Second)
	reply, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hi from grok" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Model != "grok-2-latest" || len(got.Messages) != 1 || got.Messages[0].Content != "hello" || got.Stream {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestCompatProvider_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCompatProvider("grok", srv.URL, "k", "m", time.Second)
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestCompatProvider_MissingKey(t *testing.T) {
	p := NewCompatProvider("grok", "http://unused", "", "m", time.Second)
	_, err := p.Chat(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "GROK_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestGeminiProvider_Chat(t *testing.T) {
	var got geminiReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "gk" {
			t.Errorf("missing api key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "gk", "", time.Second)
	reply, err := p.Chat(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "yo"},
		{Role: "user", Content: "again"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != "model" {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("expected system instruction")
	}
}

func TestGeminiProvider_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "gk", "m", time.Second)
	if _, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}); err == nil {
		t.Fatalf("expected blocked prompt error")
	}
}

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Errorf("stream must be false")
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"local"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "", time.Second)
	reply, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil || reply != "local" {
		t.Fatalf("unexpected reply=%q err=%v", reply, err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	p := NewOllamaProvider("", "", time.Second)
	reg.RegisterProvider(" Gemini ", p)

	got, err := reg.Get(context.Background(), "GEMINI")
	if err != nil || got != p {
		t.Fatalf("expected registered provider, err=%v", err)
	}
	if _, err := reg.Get(context.Background(), "grok"); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "gemini" {
		t.Fatalf("unexpected names %v", names)
	}
}
