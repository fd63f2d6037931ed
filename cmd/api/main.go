package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/lazycook/chat-platform/internal/config"
	"github.com/lazycook/chat-platform/internal/db"
	"github.com/lazycook/chat-platform/internal/gateway"
	"github.com/lazycook/chat-platform/internal/httpapi"
	"github.com/lazycook/chat-platform/internal/httpapi/handlers"
	"github.com/lazycook/chat-platform/internal/models"
	"github.com/lazycook/chat-platform/internal/store/rabbitmq"
	"github.com/lazycook/chat-platform/internal/store/redisstore"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: no .env file loaded: %v", err)
	}
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN, append([]any{&models.User{}}, chat.Models()...)...)

	store, closeStore := sessionStore(ctx, cfg, gdb)
	defer closeStore()

	opts := []chat.Option{chat.WithContextWindow(cfg.ChatContextWindowSize)}
	if cfg.Mirror == "rabbitmq" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit publisher: %v", err)
		}
		defer pub.Close()
		opts = append(opts, chat.WithMirror(pub))
		log.Printf("mirror=rabbitmq queue=%s", cfg.RabbitQueue)
	}

	disp := gateway.NewDispatcher(gateway.NewRegistry(cfg))
	sessions := chat.NewSessions(disp, store, opts...)
	sessions.SetIdle(cfg.SessionIdle)
	h := handlers.NewHandler(gdb, cfg, gateway.NewRouter(disp), sessions)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("api listening addr=%s store=%s", cfg.Addr, cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// sessionStore picks the Session Store backend from SESSION_STORE.
func sessionStore(ctx context.Context, cfg config.Config, gdb *gorm.DB) (chat.Store, func()) {
	switch cfg.SessionStore {
	case "redis":
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pctx); err != nil {
			log.Fatalf("redis ping addr=%s: %v", cfg.RedisAddr, err)
		}
		return rs, func() { _ = rs.Close() }
	case "", "sql":
		return chat.NewRepo(gdb), func() {}
	}
	log.Fatalf("unsupported SESSION_STORE=%q", cfg.SessionStore)
	return nil, nil
}
