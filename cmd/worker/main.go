package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/lazycook/chat-platform/internal/config"
	"github.com/lazycook/chat-platform/internal/db"
	"github.com/lazycook/chat-platform/internal/store/rabbitmq"
	"github.com/lazycook/chat-platform/internal/store/redisstore"
	amqp "github.com/rabbitmq/amqp091-go"
)

// worker applies mirrored chat writes from RabbitMQ to the Session Store.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: no .env file loaded: %v", err)
	}
	cfg := config.Load()

	var store chat.Store
	switch cfg.SessionStore {
	case "redis":
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rs.Close()
		store = rs
	default:
		store = chat.NewRepo(db.Connect(cfg.DBDSN, chat.Models()...))
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d store=%s", cfg.RabbitQueue, concurrency, cfg.SessionStore)

	// one chat's events must be applied in publish order, so a chat always
	// goes to the same worker
	lanes := make([]chan amqp.Delivery, concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := range lanes {
		lanes[i] = make(chan amqp.Delivery, 2)
		go func(workerID int, jobs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, store, d)
			}
		}(i, lanes[i])
	}

	shutdown := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			shutdown()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				shutdown()
				return
			}
			lanes[laneFor(d.Body, concurrency)] <- d
		}
	}
}

func laneFor(body []byte, n int) int {
	ev, err := rabbitmq.DecodeEvent(body)
	if err != nil {
		return 0
	}
	return rabbitmq.Lane(ev.ChatID, n)
}

func handleDelivery(ctx context.Context, workerID int, store chat.Store, d amqp.Delivery) {
	ev, err := rabbitmq.DecodeEvent(d.Body)
	if err != nil {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	err = rabbitmq.Apply(actx, store, ev)
	cancel()
	if err != nil {
		// no retry: the event goes to the DLQ
		log.Printf("worker=%d %s user=%s chat=%s failed cost=%s err=%v",
			workerID, ev.Type, ev.UserID, ev.ChatID, time.Since(start), err)
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil && !errors.Is(err, amqp.ErrClosed) {
		log.Printf("worker=%d ack failed chat=%s err=%v", workerID, ev.ChatID, err)
	}
}
