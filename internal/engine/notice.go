package engine

import (
	"context"

	"github.com/iliyamo/restaurant-queue/internal/model"
)

// NoticeKind identifies an outbound notification.
type NoticeKind string

const (
	// NoticeAssigned tells one party which table(s) it got.
	NoticeAssigned NoticeKind = "assigned"
	// NoticeQueuePosition carries a waiting party's refreshed rank.
	NoticeQueuePosition NoticeKind = "queue_position"
	// NoticeTablesChanged asks every staff view to refresh the pool.
	NoticeTablesChanged NoticeKind = "tables_changed"
	// NoticeNeedsGrouping asks staff to confirm a multi-table assignment.
	NoticeNeedsGrouping NoticeKind = "needs_grouping"
	// NoticeUsageRecorded hands a usage record to reporting.
	NoticeUsageRecorded NoticeKind = "usage_recorded"
)

// Notice is one outbound notification produced after a commit.  Only the
// fields relevant to Kind are set.
type Notice struct {
	Kind          NoticeKind         `json:"kind"`
	PartyID       string             `json:"party_id,omitempty"`
	TableID       int                `json:"table_id,omitempty"`
	ExtraTableIDs []int              `json:"extra_table_ids,omitempty"`
	HeldTableIDs  []int              `json:"held_table_ids,omitempty"`
	Position      int                `json:"position,omitempty"`
	Total         int                `json:"total,omitempty"`
	Usage         *model.UsageRecord `json:"usage,omitempty"`
}

// Notifier receives the notices of a committed transaction.  It is
// fire-and-forget: implementations must not block on network I/O for long
// and cannot fail the transaction that produced the notices.
type Notifier interface {
	Notify(ctx context.Context, notices []Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notices []Notice)

func (f NotifierFunc) Notify(ctx context.Context, notices []Notice) { f(ctx, notices) }

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, []Notice) {}

// AssignedNotice builds the notice delivered to a party that got a table.
func AssignedNotice(partyID string, tableID int, extra []int) Notice {
	return Notice{Kind: NoticeAssigned, PartyID: partyID, TableID: tableID, ExtraTableIDs: extra}
}

// QueuePositionNotices builds one position update per waiting party.
// waiting must already be in queue order.
func QueuePositionNotices(waiting []model.Party) []Notice {
	out := make([]Notice, 0, len(waiting))
	for i, p := range waiting {
		out = append(out, Notice{
			Kind:     NoticeQueuePosition,
			PartyID:  p.ID,
			Position: i + 1,
			Total:    len(waiting),
		})
	}
	return out
}

// TablesChangedNotice builds the generic staff refresh signal.
func TablesChangedNotice() Notice { return Notice{Kind: NoticeTablesChanged} }

// NeedsGroupingNotice builds the staff signal for a completed hold set.
func NeedsGroupingNotice(partyID string, held []int) Notice {
	return Notice{Kind: NoticeNeedsGrouping, PartyID: partyID, HeldTableIDs: held}
}
