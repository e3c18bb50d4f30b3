package reconcile

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"privatemsg/internal/message"
	"privatemsg/internal/store"
)

const selfID = "self"

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func incoming(id, from string, offsetSec int) message.Message {
	return message.Message{
		ID:        id,
		Text:      "text-" + id,
		CreatedAt: base.Add(time.Duration(offsetSec) * time.Second),
		Sender:    message.UserRef{ID: from, NickName: from},
		Recipient: message.UserRef{ID: selfID},
	}
}

func outgoing(id, to string, offsetSec int) message.Message {
	return message.Message{
		ID:        id,
		Text:      "text-" + id,
		CreatedAt: base.Add(time.Duration(offsetSec) * time.Second),
		Sender:    message.UserRef{ID: selfID},
		Recipient: message.UserRef{ID: to, NickName: to},
	}
}

func ids(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func newReconciler() (*Reconciler, *store.Store) {
	st := store.NewStore()
	return NewReconciler(st, selfID), st
}

func TestApplyHistory(t *testing.T) {
	r, st := newReconciler()

	batch := []message.Message{
		incoming("m2", "u2", 20),
		outgoing("m1", "u2", 10),
		incoming("m3", "u2", 30),
	}
	st.BeginLoading("u2")
	inserted := r.ApplyHistory("u2", batch, false, 50)

	assert.Equal(t, 3, inserted)
	view := st.View("u2")
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(view.Messages))
	assert.Equal(t, 50, view.Offset)
	assert.False(t, view.HasMore)
	assert.False(t, view.Loading)
	assert.Equal(t, "u2", view.Counterpart.ID)
	assert.Equal(t, "u2", view.Counterpart.NickName, "placeholder upgraded from fetched snapshot")
}

func TestApplyHistoryError_ClearsLoadingOnly(t *testing.T) {
	r, st := newReconciler()
	st.BeginLoading("u2")

	r.ApplyHistoryError("u2")

	view := st.View("u2")
	assert.False(t, view.Loading)
	assert.Empty(t, view.Messages)
	assert.Equal(t, 0, view.Offset)
}

func TestConfirmedSendDedupedAgainstLiveEcho(t *testing.T) {
	r, st := newReconciler()

	// Server confirms the send, then the live channel echoes the same
	// message id.
	m1 := outgoing("m1", "u2", 10)
	assert.True(t, r.ApplyConfirmed("u2", m1, ""))

	_, routed := r.ApplyRemote(m1)
	assert.True(t, routed)
	assert.Equal(t, []string{"m1"}, ids(st.View("u2").Messages))
}

func TestLiveEchoBeforeConfirmation(t *testing.T) {
	r, st := newReconciler()

	// Push path wins the race; the confirmation must not duplicate.
	m1 := outgoing("m1", "u2", 10)
	_, routed := r.ApplyRemote(m1)
	assert.True(t, routed)
	assert.False(t, r.ApplyConfirmed("u2", m1, ""))
	assert.Equal(t, []string{"m1"}, ids(st.View("u2").Messages))
}

func TestOptimisticPendingReplacedByConfirmation(t *testing.T) {
	r, st := newReconciler()

	pending := outgoing("local-abc", "u2", 10)
	assert.True(t, r.ApplyPending("u2", pending))
	assert.Equal(t, []string{"local-abc"}, ids(st.View("u2").Messages))

	confirmed := outgoing("m1", "u2", 11)
	assert.True(t, r.ApplyConfirmed("u2", confirmed, "local-abc"))
	assert.Equal(t, []string{"m1"}, ids(st.View("u2").Messages))
}

func TestDropPendingAfterFailedSend(t *testing.T) {
	r, st := newReconciler()

	r.ApplyPending("u2", outgoing("local-abc", "u2", 10))
	r.DropPending("local-abc")

	assert.Empty(t, st.View("u2").Messages)
}

func TestApplyRemote_RoutesByCounterpart(t *testing.T) {
	r, st := newReconciler()

	counterpartID, routed := r.ApplyRemote(incoming("m1", "u3", 10))
	assert.True(t, routed)
	assert.Equal(t, "u3", counterpartID)

	counterpartID, routed = r.ApplyRemote(outgoing("m2", "u4", 20))
	assert.True(t, routed)
	assert.Equal(t, "u4", counterpartID)

	assert.Equal(t, []string{"m1"}, ids(st.View("u3").Messages))
	assert.Equal(t, []string{"m2"}, ids(st.View("u4").Messages))
}

func TestApplyRemote_NoCrossConversationLeakage(t *testing.T) {
	r, st := newReconciler()
	st.MergeOne("u9", incoming("m0", "u9", 5))

	// Open view is with u9; event belongs to u3.
	_, routed := r.ApplyRemote(incoming("m1", "u3", 10))
	assert.True(t, routed)
	assert.Equal(t, []string{"m0"}, ids(st.View("u9").Messages))
}

func TestApplyRemote_UnrelatedPairDropped(t *testing.T) {
	r, st := newReconciler()

	stray := message.Message{
		ID:        "m1",
		CreatedAt: base,
		Sender:    message.UserRef{ID: "u5"},
		Recipient: message.UserRef{ID: "u6"},
	}
	_, routed := r.ApplyRemote(stray)
	assert.False(t, routed)
	assert.Empty(t, st.View("u5").Messages)
	assert.Empty(t, st.View("u6").Messages)
}

func TestApplyRead(t *testing.T) {
	r, st := newReconciler()
	st.MergeOne("u2", incoming("m1", "u2", 10))

	at := base.Add(time.Minute)
	assert.True(t, r.ApplyRead("m1", at))
	assert.False(t, r.ApplyRead("m1", at.Add(time.Minute)), "second read is a sequence no-op")
	assert.Equal(t, at, *st.View("u2").Messages[0].ReadAt)

	assert.False(t, r.ApplyRead("missing", at), "unknown id is a sequence no-op")
}

func TestApplyDelete(t *testing.T) {
	r, st := newReconciler()
	st.MergeOne("u2", incoming("m1", "u2", 10))

	assert.True(t, r.ApplyDelete("m1"))
	assert.False(t, r.ApplyDelete("m1"))
	assert.Empty(t, st.View("u2").Messages)
}

// Interleaves all three sources and checks the global order invariant.
func TestOrderInvariantAcrossSources(t *testing.T) {
	r, st := newReconciler()

	st.BeginLoading("u2")
	r.ApplyHistory("u2", []message.Message{
		incoming("m4", "u2", 40),
		incoming("m6", "u2", 60),
	}, true, 2)

	r.ApplyConfirmed("u2", outgoing("m7", "u2", 70), "")
	r.ApplyRemote(incoming("m5", "u2", 50))

	// Older page arrives last and must be spliced before the rest.
	st.BeginLoading("u2")
	r.ApplyHistory("u2", []message.Message{
		incoming("m2", "u2", 20),
		outgoing("m3", "u2", 30),
		incoming("m4", "u2", 40), // server-side shift re-sent m4
	}, false, 3)

	msgs := st.View("u2").Messages
	assert.Equal(t, []string{"m2", "m3", "m4", "m5", "m6", "m7"}, ids(msgs))
	assert.True(t, sort.SliceIsSorted(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	}))
}

// Walks pages until hasMore is false and checks every message is seen
// exactly once, with duplicates from a shifting dataset filtered out.
func TestPaginationTermination(t *testing.T) {
	r, st := newReconciler()

	all := []message.Message{
		incoming("m1", "u2", 10),
		incoming("m2", "u2", 20),
		incoming("m3", "u2", 30),
		incoming("m4", "u2", 40),
		incoming("m5", "u2", 50),
	}
	pageSize := 2

	for page := 0; ; page++ {
		view := st.View("u2")
		if page > 0 && !view.HasMore {
			break
		}
		start := page * pageSize
		end := start + pageSize
		if end > len(all) {
			end = len(all)
		}
		st.BeginLoading("u2")
		r.ApplyHistory("u2", all[start:end], end < len(all), pageSize)
	}

	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids(st.View("u2").Messages))
}
