package chat

import (
	"time"

	"github.com/lazycook/chat-platform/internal/ai"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Pending marks an assistant slot whose reply has not resolved yet.
	Pending bool `json:"pending,omitempty"`
	// Failed marks an assistant slot filled with an error text.
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

type State string

const (
	StateEmpty   State = "empty"
	StateActive  State = "active"
	StateDeleted State = "deleted"
)

// State is Empty until the first user message is appended.
func (c Chat) State() State {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return StateActive
		}
	}
	return StateEmpty
}

func (c Chat) clone() Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

func (c *Chat) indexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

func (c *Chat) userMessages() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// history returns up to n settled messages, oldest first, as provider input.
// A turn whose reply is pending or failed is left out along with its user
// message, so roles keep alternating.
func (c *Chat) history(n int) []ai.Message {
	out := make([]ai.Message, 0, n)
	for i := len(c.Messages) - 1; i >= 0 && len(out) < n; i-- {
		m := c.Messages[i]
		if m.Role == RoleAssistant && (m.Pending || m.Failed) {
			if i > 0 && c.Messages[i-1].Role == RoleUser {
				i--
			}
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// interruptPending fails assistant slots that were saved before their reply
// arrived; nothing will resolve them after a reload.
func (c *Chat) interruptPending() {
	for i := range c.Messages {
		if c.Messages[i].Pending {
			c.Messages[i].Pending = false
			c.Messages[i].Failed = true
			c.Messages[i].Content = interruptedText
		}
	}
}
