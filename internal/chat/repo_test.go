package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/lazycook/chat-platform/internal/plan"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRepo_RoundTripKeepsMessageOrder(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	c := Chat{
		ID:        "01TESTCHAT0000000000000001",
		Title:     "hello world",
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []Message{
			{ID: "01TESTMSG00000000000000009", Role: RoleUser, Content: "first", CreatedAt: now},
			{ID: "01TESTMSG00000000000000001", Role: RoleAssistant, Content: "reply one", CreatedAt: now},
			{ID: "01TESTMSG00000000000000005", Role: RoleUser, Content: "second", CreatedAt: now},
			{ID: "01TESTMSG00000000000000003", Role: RoleAssistant, Content: "", Pending: true, CreatedAt: now},
		},
	}
	if err := repo.SaveChat(ctx, "1", c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.ListChats(ctx, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(got))
	}
	if got[0].Title != c.Title || len(got[0].Messages) != len(c.Messages) {
		t.Fatalf("unexpected chat: %+v", got[0])
	}
	for i := range c.Messages {
		w, g := c.Messages[i], got[0].Messages[i]
		if w.ID != g.ID || w.Role != g.Role || w.Content != g.Content || w.Pending != g.Pending {
			t.Fatalf("message %d mismatch: want %+v got %+v", i, w, g)
		}
	}
}

func TestRepo_SaveReplacesDocument(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c := Chat{ID: "01TESTCHAT0000000000000002", Title: DefaultTitle, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		Messages: []Message{{ID: "01TESTMSG00000000000000010", Role: RoleUser, Content: "a"}}}
	if err := repo.SaveChat(ctx, "1", c); err != nil {
		t.Fatalf("save: %v", err)
	}

	c.Title = "renamed"
	c.Messages = append(c.Messages, Message{ID: "01TESTMSG00000000000000011", Role: RoleAssistant, Content: "b"})
	if err := repo.SaveChat(ctx, "1", c); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, _ := repo.ListChats(ctx, "1")
	if len(got) != 1 || got[0].Title != "renamed" || len(got[0].Messages) != 2 {
		t.Fatalf("unexpected after overwrite: %+v", got)
	}

	if err := repo.SaveChat(ctx, "2", c); err == nil {
		t.Fatalf("expected error writing another user's chat id")
	}
	if other, _ := repo.ListChats(ctx, "2"); len(other) != 0 {
		t.Fatalf("users must be isolated")
	}

	if err := repo.DeleteChat(ctx, "1", c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.ListChats(ctx, "1"); len(got) != 0 {
		t.Fatalf("expected no chats after delete")
	}
	if err := repo.DeleteChat(ctx, "1", "missing"); err != nil {
		t.Fatalf("deleting unknown chat must be a no-op: %v", err)
	}
}

func TestManagerWithRepo_SurvivesRestart(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	first := NewManager("7", plan.Go, &fakeDispatcher{reply: "ok "}, repo)
	res := first.SendMessage(ctx, "", "plan my week")
	if res.Warning != nil {
		t.Fatalf("unexpected warning: %v", res.Warning)
	}

	second := NewManager("7", plan.Go, &fakeDispatcher{}, repo)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	c, err := second.Chat(res.ChatID)
	if err != nil {
		t.Fatalf("chat missing after reload: %v", err)
	}
	if c.Title != "plan my week" || len(c.Messages) != 2 ||
		c.Messages[0].Role != RoleUser || c.Messages[1].Content != "ok plan my week" {
		t.Fatalf("unexpected reloaded chat: %+v", c)
	}
}
