package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.  A returned error rejects the
// message without requeueing it.
type Handler func(body []byte) error

// Consumer reads one durable queue and hands every delivery to a Handler.
type Consumer struct {
	URL     string
	Queue   string
	Handler Handler
	Log     *slog.Logger
}

// Run connects to RabbitMQ, declares the queue and consumes it.  It
// reconnects with exponential backoff until ctx is cancelled, and only
// returns then.
func (c Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("queue", c.Queue)
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c Consumer) consume(ctx context.Context, conn *amqp.Connection, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handler(d.Body); err != nil {
				log.Warn("consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
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

// LogWriter appends single-line records to a file under a directory.
// Writes are serialized.
type LogWriter struct {
	Dir  string
	File string
	mu   sync.Mutex
}

func (w *LogWriter) append(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.Dir, w.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// UsageLogHandler writes every TableUsageEvent to w.
func UsageLogHandler(w *LogWriter) Handler {
	return func(body []byte) error {
		var ev TableUsageEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return w.append(FormatUsage(ev))
	}
}

// AssignedLogHandler writes every PartyAssignedEvent to w.
func AssignedLogHandler(w *LogWriter) Handler {
	return func(body []byte) error {
		var ev PartyAssignedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return w.append(FormatAssigned(ev))
	}
}

// FormatUsage renders a usage event as one log line.
func FormatUsage(ev TableUsageEvent) string {
	return fmt.Sprintf("[%s] Table released | usage_id=%d | table_id=%d | duration=%.0fs\n",
		ev.RecordedAt, ev.UsageID, ev.TableID, ev.DurationSeconds)
}

// FormatAssigned renders an assignment event as one log line.
func FormatAssigned(ev PartyAssignedEvent) string {
	tables := []string{fmt.Sprint(ev.TableID)}
	for _, id := range ev.ExtraTableIDs {
		tables = append(tables, fmt.Sprint(id))
	}
	return fmt.Sprintf("[%s] Party assigned | party_id=%s | tables=[%s]\n",
		ev.AssignedAt, ev.PartyID, strings.Join(tables, ","))
}
