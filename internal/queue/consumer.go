package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// StartNotificationConsumer connects to RabbitMQ, declares the queue
// (durable) and appends every notification to logs/notifications.log in
// a single-line format.  It reconnects with backoff until ctx is done.
// Malformed messages are rejected without requeue so the consumer never
// spins on them.
func StartNotificationConsumer(ctx context.Context, url, queue string) error {
	if queue == "" {
		queue = DefaultQueueName
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	logger := log.With().Str("module", "queue.consumer").Str("queue", queue).Logger()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, queue, f)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, out io.Writer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Str("module", "queue.consumer").Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(out, d.Body); err != nil {
			log.Error().Err(err).Str("module", "queue.consumer").Msg("handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(out io.Writer, body []byte) error {
	var m NotificationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if m.Kind == "" || m.UserID == 0 {
		return fmt.Errorf("incomplete notification %q", m.ID)
	}
	line := fmt.Sprintf("[%s] %s | id=%s | event_id=%d | user_id=%d | actor_id=%d | room=%d",
		m.CreatedAt, m.Kind, m.ID, m.EventID, m.UserID, m.ActorID, m.Room)
	if m.Slot != nil {
		line += fmt.Sprintf(" | slot=%d", *m.Slot)
	}
	if m.Detail != "" {
		line += fmt.Sprintf(" | detail=%q", m.Detail)
	}
	if _, err := io.WriteString(out, line+"\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	log.Info().Str("module", "queue.consumer").Str("kind", m.Kind).Uint64("user_id", m.UserID).Msg("notification delivered")
	return nil
}
