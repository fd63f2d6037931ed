package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/redis/go-redis/v9"
)

// Runs only against a real server: REDIS_TEST_ADDR=127.0.0.1:6379.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	s := NewWithClient(rdb, "lazycook-test-"+time.Now().Format("150405.000000"))
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = rdb.Del(context.Background(), s.chatsKey("u1")).Err()
		_ = s.Close()
	})
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := chat.Chat{ID: "A", Title: "older", CreatedAt: time.Now().Add(-time.Hour),
		Messages: []chat.Message{{ID: "m1", Role: chat.RoleUser, Content: "hi"}, {ID: "m2", Role: chat.RoleAssistant, Content: "yo"}}}
	newer := chat.Chat{ID: "B", Title: "newer", CreatedAt: time.Now()}

	for _, c := range []chat.Chat{older, newer} {
		if err := s.SaveChat(ctx, "u1", c); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.ListChats(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "B" || got[1].ID != "A" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got[1].Messages) != 2 || got[1].Messages[0].Content != "hi" || got[1].Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("messages not preserved: %+v", got[1].Messages)
	}

	if err := s.DeleteChat(ctx, "u1", "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.ListChats(ctx, "u1")
	if len(got) != 1 || got[0].ID != "B" {
		t.Fatalf("unexpected after delete: %+v", got)
	}
}

func TestChatsKey(t *testing.T) {
	s := NewWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	if got := s.chatsKey("42"); got != "lazycook:chats:42" {
		t.Fatalf("unexpected key %q", got)
	}
}
