// Package redisstore keeps chat documents in Redis: one hash per user, one
// JSON document per chat field.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "lazycook",
	}
}

// NewWithClient wraps an existing client; prefix namespaces the keys.
func NewWithClient(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "lazycook"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(cctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) chatsKey(userID string) string {
	return fmt.Sprintf("%s:chats:%s", s.prefix, userID)
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	docs, err := s.rdb.HGetAll(ctx, s.chatsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chat.Chat, 0, len(docs))
	for field, doc := range docs {
		var c chat.Chat
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decode chat %s: %w", field, err)
		}
		if c.Messages == nil {
			c.Messages = []chat.Message{}
		}
		out = append(out, c)
	}
	chat.SortNewestFirst(out)
	return out, nil
}

func (s *Store) SaveChat(ctx context.Context, userID string, c chat.Chat) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.chatsKey(userID), c.ID, b).Err()
}

func (s *Store) DeleteChat(ctx context.Context, userID, chatID string) error {
	return s.rdb.HDel(ctx, s.chatsKey(userID), chatID).Err()
}
