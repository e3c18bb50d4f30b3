// Package store owns the per-counterpart conversation state and the
// process-wide unread counter. It performs no network calls; the
// reconciler is its only writer.
package store

import (
	"sort"
	"sync"
	"time"

	"privatemsg/internal/message"
)

// View is a read-only copy of one conversation's state.
type View struct {
	Counterpart message.UserRef
	Messages    []message.Message
	Offset      int
	HasMore     bool
	Loading     bool
}

type conversation struct {
	counterpart message.UserRef
	messages    []message.Message
	offset      int
	hasMore     bool
	loading     bool
}

// Store holds every conversation of the session, keyed by the
// counterpart's user id, plus the list-view summaries and the unread
// total. Conversations persist across view detach for the whole
// session; late fetch results still land here.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	summaries     []message.ConversationSummary
	unread        int
}

func NewStore() *Store {
	return &Store{conversations: make(map[string]*conversation)}
}

// get creates the conversation on first touch. A fresh conversation
// starts with hasMore=true so the first page fetch is allowed.
func (s *Store) get(counterpartID string) *conversation {
	c, ok := s.conversations[counterpartID]
	if !ok {
		c = &conversation{
			counterpart: message.Placeholder(counterpartID),
			hasMore:     true,
		}
		s.conversations[counterpartID] = c
	}
	return c
}

func (s *Store) View(counterpartID string) View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[counterpartID]
	if !ok {
		return View{Counterpart: message.Placeholder(counterpartID), HasMore: true}
	}
	msgs := make([]message.Message, len(c.messages))
	copy(msgs, c.messages)
	return View{
		Counterpart: c.counterpart,
		Messages:    msgs,
		Offset:      c.offset,
		HasMore:     c.hasMore,
		Loading:     c.loading,
	}
}

// BeginLoading sets the loading flag, returning false if a fetch for
// this conversation is already in flight.
func (s *Store) BeginLoading(counterpartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(counterpartID)
	if c.loading {
		return false
	}
	c.loading = true
	return true
}

func (s *Store) EndLoading(counterpartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(counterpartID).loading = false
}

// MergeBatch splices every message of the batch into the sequence,
// skipping ids already present. Returns how many were inserted.
// Merging the same batch twice is a no-op the second time.
func (s *Store) MergeBatch(counterpartID string, batch []message.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(counterpartID)
	inserted := 0
	for _, m := range batch {
		if c.splice(m) {
			inserted++
		}
	}
	return inserted
}

// MergeOne splices a single message, returning false on a duplicate id.
func (s *Store) MergeOne(counterpartID string, m message.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(counterpartID).splice(m)
}

// splice inserts m at its sorted (createdAt, id) position. Insertion is
// positional rather than an append so a live or confirmed message with
// a skewed clock still lands in order.
func (c *conversation) splice(m message.Message) bool {
	for _, existing := range c.messages {
		if existing.ID == m.ID {
			return false
		}
	}
	i := sort.Search(len(c.messages), func(i int) bool {
		return m.Before(c.messages[i])
	})
	c.messages = append(c.messages, message.Message{})
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = m
	return true
}

// Remove deletes the message with the given id from whichever
// conversation holds it. Returns the owning counterpart id.
func (s *Store) Remove(messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for counterpartID, c := range s.conversations {
		for i, m := range c.messages {
			if m.ID == messageID {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				return counterpartID, true
			}
		}
	}
	return "", false
}

// AdvancePage records the outcome of a consumed history page: the
// offset moves by the full page size regardless of how many messages
// actually came back.
func (s *Store) AdvancePage(counterpartID string, pageSize int, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(counterpartID)
	c.offset += pageSize
	c.hasMore = hasMore
}

// MarkRead sets the read marker on the message with the given id. The
// transition is one-way: an already-set marker is never overwritten,
// and an unknown id is a no-op.
func (s *Store) MarkRead(messageID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		for i := range c.messages {
			if c.messages[i].ID != messageID {
				continue
			}
			if c.messages[i].ReadAt != nil {
				return false
			}
			t := at
			c.messages[i].ReadAt = &t
			return true
		}
	}
	return false
}

// SetCounterpart replaces the stored counterpart snapshot, used when a
// fetched message carries a fuller profile than the placeholder.
func (s *Store) SetCounterpart(counterpartID string, ref message.UserRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(counterpartID).counterpart = ref
}

func (s *Store) SetUnread(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.unread = n
}

func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// SetSummaries replaces the conversation list wholesale; live events
// never patch it.
func (s *Store) SetSummaries(list []message.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = list
}

func (s *Store) Summaries() []message.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]message.ConversationSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}
