package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iliyamo/restaurant-queue/internal/engine"
)

type batch struct {
	ctx     context.Context
	notices []engine.Notice
}

// Async hands notice batches to a background worker so that the engine
// never waits on delivery.  When the buffer is full the batch is dropped
// and logged.
type Async struct {
	next engine.Notifier
	log  *slog.Logger
	ch   chan batch
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a worker delivering to next.
func NewAsync(next engine.Notifier, buffer int, log *slog.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Async{
		next: next,
		log:  log,
		ch:   make(chan batch, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for b := range a.ch {
		a.next.Notify(b.ctx, b.notices)
	}
}

// Notify implements engine.Notifier.
func (a *Async) Notify(ctx context.Context, notices []engine.Notice) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("notify: dropped notices after close", "count", len(notices))
		return
	}
	select {
	case a.ch <- batch{ctx: ctx, notices: notices}:
	default:
		a.log.Warn("notify: buffer full, dropped notices", "count", len(notices))
	}
}

// Close stops accepting notices and waits until queued batches are
// delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}
