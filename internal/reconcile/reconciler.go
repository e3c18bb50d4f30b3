// Package reconcile merges the three message sources — paginated
// history, send confirmations, and live push events — into the
// conversation store. The Reconciler is the store's only writer, so
// every merge is atomic with respect to the next one.
package reconcile

import (
	"time"

	"privatemsg/internal/message"
	"privatemsg/internal/store"
)

type Reconciler struct {
	store  *store.Store
	selfID string
}

// NewReconciler binds the reconciler to the session user, whose id
// decides how live events are routed to counterparts.
func NewReconciler(st *store.Store, selfID string) *Reconciler {
	return &Reconciler{store: st, selfID: selfID}
}

// ApplyHistory merges a fetched history page. The offset advances by
// the full page size whether or not every slot was filled, and
// duplicates against earlier pages or live deliveries are filtered by
// id. Returns the number of newly inserted messages.
func (r *Reconciler) ApplyHistory(counterpartID string, batch []message.Message, hasMore bool, pageSize int) int {
	inserted := r.store.MergeBatch(counterpartID, batch)
	r.store.AdvancePage(counterpartID, pageSize, hasMore)
	r.store.EndLoading(counterpartID)

	// A fetched message may carry a fuller counterpart snapshot than
	// the placeholder we opened the conversation with.
	for _, m := range batch {
		if other, ok := m.Counterpart(r.selfID); ok && other.ID == counterpartID {
			r.store.SetCounterpart(counterpartID, other)
			break
		}
	}
	return inserted
}

// ApplyHistoryError clears the loading flag without touching the
// sequence; the failed page may be retried by the caller.
func (r *Reconciler) ApplyHistoryError(counterpartID string) {
	r.store.EndLoading(counterpartID)
}

// ApplyPending inserts a locally-submitted message before the server
// has confirmed it. Used only under the optimistic send policy.
func (r *Reconciler) ApplyPending(counterpartID string, m message.Message) bool {
	return r.store.MergeOne(counterpartID, m)
}

// DropPending removes an optimistic entry after a failed send.
func (r *Reconciler) DropPending(localID string) {
	r.store.Remove(localID)
}

// ApplyConfirmed inserts the server-confirmed message for a send. When
// localID is non-empty the optimistic placeholder is removed first, so
// exactly one entry remains per accepted send even if the live channel
// already delivered the same id.
func (r *Reconciler) ApplyConfirmed(counterpartID string, m message.Message, localID string) bool {
	if localID != "" {
		r.store.Remove(localID)
	}
	return r.store.MergeOne(counterpartID, m)
}

// ApplyRemote routes a live "new message" event to the conversation of
// whichever participant is not the session user. Events with neither
// participant matching are dropped for sequence purposes; the caller
// still refreshes the unread total.
func (r *Reconciler) ApplyRemote(m message.Message) (string, bool) {
	other, ok := m.Counterpart(r.selfID)
	if !ok {
		return "", false
	}
	r.store.MergeOne(other.ID, m)
	return other.ID, true
}

// ApplyRead performs the absent-to-set read transition. A read event
// for a message we do not hold is a no-op on the sequence.
func (r *Reconciler) ApplyRead(messageID string, at time.Time) bool {
	return r.store.MarkRead(messageID, at)
}

// ApplyDelete removes a message after the server confirmed deletion.
func (r *Reconciler) ApplyDelete(messageID string) bool {
	_, ok := r.store.Remove(messageID)
	return ok
}

// ApplyUnread replaces the unread total with the server-authoritative
// count. The counter is never decremented speculatively.
func (r *Reconciler) ApplyUnread(n int) {
	r.store.SetUnread(n)
}
