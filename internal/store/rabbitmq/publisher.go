package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lazycook/chat-platform/internal/chat"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is a chat.Mirror that queues writes for cmd/worker. A publish
// error is the only failure the caller sees; the store write happens later.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// DeclareQueues declares the main queue dead-lettering into "<queue>.dlq".
// Publisher and worker both call it so either may start first.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"

	if _, err := ch.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// nack(requeue=false) goes to the DLQ; mirror writes are never retried
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	return err
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) SaveChat(ctx context.Context, userID string, c chat.Chat) error {
	return p.publish(ctx, MirrorEvent{
		Type:   EventSaveChat,
		UserID: userID,
		ChatID: c.ID,
		Chat:   &c,
		At:     time.Now(),
	})
}

func (p *Publisher) DeleteChat(ctx context.Context, userID, chatID string) error {
	return p.publish(ctx, MirrorEvent{
		Type:   EventDeleteChat,
		UserID: userID,
		ChatID: chatID,
		At:     time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, ev MirrorEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(ev.Type),
			Body:         body,
			Timestamp:    ev.At,
		},
	)
}
