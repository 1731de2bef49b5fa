// Package notify routes engine notices to the delivery channels: the live
// party streams, the broker-backed push channel, the staff broadcast and the
// usage report stream.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/queue"
	"github.com/iliyamo/restaurant-queue/internal/realtime"
)

// Direct delivers events to a party's live streams.
type Direct interface {
	SendParty(ctx context.Context, partyID string, ev realtime.Event) error
}

// Staff delivers events to every staff stream.
type Staff interface {
	BroadcastStaff(ctx context.Context, ev realtime.Event) error
}

// Push is the store-and-forward channel for assignments.
type Push interface {
	PublishAssigned(ctx context.Context, ev queue.PartyAssignedEvent) error
}

// Reporter receives usage records.
type Reporter interface {
	PublishUsage(ctx context.Context, ev queue.TableUsageEvent) error
}

// FanOut implements engine.Notifier.  Any channel may be nil.  Delivery
// failures are logged and never retried.
type FanOut struct {
	Direct   Direct
	Push     Push
	Staff    Staff
	Reporter Reporter
	Log      *slog.Logger
	Now      func() time.Time
}

func (f *FanOut) logger() *slog.Logger {
	if f.Log == nil {
		return slog.Default()
	}
	return f.Log
}

func (f *FanOut) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// Notify implements engine.Notifier.
func (f *FanOut) Notify(ctx context.Context, notices []engine.Notice) {
	for _, n := range notices {
		switch n.Kind {
		case engine.NoticeAssigned:
			f.assigned(ctx, n)
		case engine.NoticeQueuePosition:
			if f.Direct == nil {
				continue
			}
			// Waiting parties without an open stream poll their status.
			if err := f.Direct.SendParty(ctx, n.PartyID, Event(n)); err != nil &&
				!errors.Is(err, realtime.ErrNotConnected) {
				f.logger().Warn("notify: position update failed", "party_id", n.PartyID, "err", err)
			}
		case engine.NoticeTablesChanged, engine.NoticeNeedsGrouping:
			if f.Staff == nil {
				continue
			}
			if err := f.Staff.BroadcastStaff(ctx, Event(n)); err != nil {
				f.logger().Warn("notify: staff broadcast failed", "kind", n.Kind, "err", err)
			}
		case engine.NoticeUsageRecorded:
			f.usage(ctx, n)
		}
	}
}

// assigned tries both party channels; the party is reached if either
// succeeds.
func (f *FanOut) assigned(ctx context.Context, n engine.Notice) {
	var directErr, pushErr error = errNoChannel, errNoChannel
	if f.Direct != nil {
		directErr = f.Direct.SendParty(ctx, n.PartyID, Event(n))
	}
	if f.Push != nil {
		pushErr = f.Push.PublishAssigned(ctx, queue.PartyAssignedEvent{
			PartyID:       n.PartyID,
			TableID:       n.TableID,
			ExtraTableIDs: n.ExtraTableIDs,
			AssignedAt:    f.now().Format(time.RFC3339),
		})
	}
	if directErr != nil && pushErr != nil {
		f.logger().Warn("notify: party not reached",
			"party_id", n.PartyID, "table_id", n.TableID,
			"direct_err", directErr, "push_err", pushErr)
	}
}

func (f *FanOut) usage(ctx context.Context, n engine.Notice) {
	if f.Reporter == nil || n.Usage == nil {
		return
	}
	u := n.Usage
	err := f.Reporter.PublishUsage(ctx, queue.TableUsageEvent{
		UsageID:         u.ID,
		TableID:         u.TableID,
		DurationSeconds: u.DurationSeconds,
		RecordedAt:      u.RecordedAt.Format(time.RFC3339),
	})
	if err != nil {
		f.logger().Warn("notify: usage report failed", "table_id", u.TableID, "err", err)
	}
}

var errNoChannel = errors.New("channel not configured")

// Event encodes a notice as a stream event named after its kind.
func Event(n engine.Notice) realtime.Event {
	b, _ := json.Marshal(n)
	return realtime.Event{Name: string(n.Kind), Data: b}
}
