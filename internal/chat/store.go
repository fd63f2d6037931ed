package chat

import (
	"context"
	"sort"
	"sync"
)

// Store is the durable per-user Session Store. Writes replace the whole chat
// document, so concurrent writers resolve as last-write-wins per chat.
type Store interface {
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	SaveChat(ctx context.Context, userID string, c Chat) error
	DeleteChat(ctx context.Context, userID, chatID string) error
}

// Mirror receives the Manager's writes. A Store is a Mirror; the RabbitMQ
// publisher is one that defers the Store write to a worker.
type Mirror interface {
	SaveChat(ctx context.Context, userID string, c Chat) error
	DeleteChat(ctx context.Context, userID, chatID string) error
}

// SortNewestFirst orders by creation time, newest first, id as tie-breaker.
func SortNewestFirst(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].ID > chats[j].ID
		}
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
}

// MemoryStore keeps documents in process. Used by tests and the terminal
// client.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]map[string]Chat
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]map[string]Chat)}
}

func (s *MemoryStore) ListChats(_ context.Context, userID string) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chat, 0, len(s.users[userID]))
	for _, c := range s.users[userID] {
		out = append(out, c.clone())
	}
	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) SaveChat(_ context.Context, userID string, c Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[userID] == nil {
		s.users[userID] = make(map[string]Chat)
	}
	s.users[userID][c.ID] = c.clone()
	return nil
}

func (s *MemoryStore) DeleteChat(_ context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users[userID], chatID)
	return nil
}
