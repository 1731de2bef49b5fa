// Package service holds the outbound broker publisher.  Errors are logged
// and returned so callers can ignore failures without interrupting the
// main request flow.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/restaurant-queue/internal/queue"
)

// ErrPublisherDisabled is returned when no broker URL is configured.
var ErrPublisherDisabled = errors.New("publisher disabled")

// Publisher publishes domain events to durable RabbitMQ queues.  The
// connection is opened on first use and reopened after a failure.
type Publisher struct {
	url string
	log *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewPublisher returns a publisher for url.  An empty url disables it.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log}
}

// Enabled reports whether a broker URL is configured.
func (p *Publisher) Enabled() bool { return p.url != "" }

// PublishAssigned publishes to the party.assigned queue.
func (p *Publisher) PublishAssigned(ctx context.Context, ev q.PartyAssignedEvent) error {
	return p.publish(ctx, q.PartyAssignedQueue, ev)
}

// PublishUsage publishes to the table.usage queue.
func (p *Publisher) PublishUsage(ctx context.Context, ev q.TableUsageEvent) error {
	return p.publish(ctx, q.TableUsageQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	if !p.Enabled() {
		return ErrPublisherDisabled
	}
	body, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("rabbitmq: marshal event failed", "queue", queue, "err", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.log.Warn("rabbitmq: connect failed", "err", err)
		return err
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if !p.declared[queue] {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.log.Warn("rabbitmq: queue declare failed", "queue", queue, "err", err)
			p.reset()
			return err
		}
		p.declared[queue] = true
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", "queue", queue, "err", err)
		p.reset()
		return err
	}
	return nil
}

// channel returns the open channel, dialing when needed.  Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch, p.declared = conn, ch, make(map[string]bool)
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch, p.declared = nil, nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
