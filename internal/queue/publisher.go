package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/model"
)

// Publisher implements service.Notifier.  Notify only enqueues into a
// bounded buffer; Run drains the buffer to RabbitMQ.  When the buffer
// is full the notification is dropped and logged.
type Publisher struct {
	url   string
	queue string
	buf   chan model.Notification
	send  func(ctx context.Context, body []byte) error

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  An empty
// queue name selects DefaultQueueName.
func NewPublisher(url, queue string, buffer int) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer < 1 {
		buffer = 1
	}
	p := &Publisher{url: url, queue: queue, buf: make(chan model.Notification, buffer)}
	p.send = p.publish
	return p
}

// Notify never blocks.
func (p *Publisher) Notify(_ context.Context, n model.Notification) {
	select {
	case p.buf <- n:
	default:
		log.Warn().Str("module", "queue.publisher").Str("kind", string(n.Kind)).
			Uint64("event_id", n.EventID).Uint64("user_id", n.UserID).Msg("notification buffer full, dropping")
	}
}

// Run publishes buffered notifications until ctx is cancelled.  Publish
// failures are logged and the message is dropped; the connection is
// re-dialled on the next message.
func (p *Publisher) Run(ctx context.Context) {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.buf:
			p.deliver(ctx, n)
		}
	}
}

// Flush publishes whatever is buffered and returns once the buffer is
// empty.  It is for one-shot processes that never call Run; the two must
// not be used together.
func (p *Publisher) Flush(ctx context.Context) {
	defer p.close()
	for {
		select {
		case n := <-p.buf:
			p.deliver(ctx, n)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, n model.Notification) {
	body, err := json.Marshal(MessageFrom(n))
	if err != nil {
		log.Error().Err(err).Str("module", "queue.publisher").Msg("marshal notification failed")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.send(pctx, body); err != nil {
		log.Error().Err(err).Str("module", "queue.publisher").Str("id", n.ID).Str("kind", string(n.Kind)).Msg("publish failed")
	}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.close()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.close()
		return err
	}
	return nil
}

func (p *Publisher) close() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
