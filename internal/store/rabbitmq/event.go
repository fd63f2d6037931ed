package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/lazycook/chat-platform/internal/chat"
)

type EventType string

const (
	EventSaveChat   EventType = "chat.save"
	EventDeleteChat EventType = "chat.delete"
)

// MirrorEvent is one queued Session Store write.
type MirrorEvent struct {
	Type   EventType  `json:"type"`
	UserID string     `json:"user_id"`
	ChatID string     `json:"chat_id"`
	Chat   *chat.Chat `json:"chat,omitempty"`
	At     time.Time  `json:"at"`
}

var ErrBadEvent = errors.New("bad mirror event")

func DecodeEvent(body []byte) (MirrorEvent, error) {
	var ev MirrorEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if ev.UserID == "" || ev.ChatID == "" {
		return ev, fmt.Errorf("%w: user_id and chat_id required", ErrBadEvent)
	}
	switch ev.Type {
	case EventSaveChat:
		if ev.Chat == nil || ev.Chat.ID != ev.ChatID {
			return ev, fmt.Errorf("%w: save without matching chat", ErrBadEvent)
		}
	case EventDeleteChat:
	default:
		return ev, fmt.Errorf("%w: unknown type %q", ErrBadEvent, ev.Type)
	}
	return ev, nil
}

// Apply performs the write an event describes.
func Apply(ctx context.Context, store chat.Store, ev MirrorEvent) error {
	switch ev.Type {
	case EventSaveChat:
		return store.SaveChat(ctx, ev.UserID, *ev.Chat)
	case EventDeleteChat:
		return store.DeleteChat(ctx, ev.UserID, ev.ChatID)
	}
	return fmt.Errorf("%w: unknown type %q", ErrBadEvent, ev.Type)
}

// Lane maps a chat to one of n ordered consumers.
func Lane(chatID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return int(h.Sum32() % uint32(n))
}
