// Package chat orchestrates the messaging feature: history fetch,
// send, conversation list, unread tracking, and the live stream pump.
// All store mutations go through the reconciler.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"privatemsg/internal/client"
	"privatemsg/internal/config"
	"privatemsg/internal/message"
	"privatemsg/internal/reconcile"
	"privatemsg/internal/session"
	"privatemsg/internal/store"
	"privatemsg/internal/stream"
)

var (
	ErrFetchInFlight  = errors.New("a fetch for this conversation is already in flight")
	ErrSendInFlight   = errors.New("a send for this conversation is already in flight")
	ErrStreamAttached = errors.New("a live stream is already attached")
)

// API is the REST surface the service depends on.
type API interface {
	SendMessage(ctx context.Context, recipientID, text string) (message.Message, error)
	Conversation(ctx context.Context, userID string, limit, offset int) (client.ConversationPage, error)
	Conversations(ctx context.Context) ([]message.ConversationSummary, error)
	MarkRead(ctx context.Context, messageID string) error
	UnreadCount(ctx context.Context) (int, error)
	DeleteMessage(ctx context.Context, messageID string) error
	SearchUsers(ctx context.Context, search string, limit int) ([]message.UserRef, error)
}

type Service struct {
	api     API
	rec     *reconcile.Reconciler
	store   *store.Store
	sess    *session.Session
	cfg     config.Chat
	subject *Subject

	mu      sync.Mutex
	sending map[string]bool

	streamMu sync.Mutex
	channel  *stream.Channel
	pumpDone chan struct{}
}

func NewService(api API, rec *reconcile.Reconciler, st *store.Store, sess *session.Session, cfg *config.Config) *Service {
	return &Service{
		api:     api,
		rec:     rec,
		store:   st,
		sess:    sess,
		cfg:     cfg.Chat,
		subject: NewSubject(),
		sending: make(map[string]bool),
	}
}

// Subscribe registers a UI observer for chat events.
func (s *Service) Subscribe(o Observer)   { s.subject.Subscribe(o) }
func (s *Service) Unsubscribe(o Observer) { s.subject.Unsubscribe(o) }

// Conversation exposes the current store state for rendering.
func (s *Service) Conversation(counterpartID string) store.View {
	return s.store.View(counterpartID)
}

func (s *Service) Unread() int { return s.store.Unread() }

// RefreshUnread pulls the authoritative unread total. The local
// counter is never decremented on its own; this refresh is the only
// way down.
func (s *Service) RefreshUnread(ctx context.Context) (int, error) {
	n, err := s.api.UnreadCount(ctx)
	if err != nil {
		return s.store.Unread(), fmt.Errorf("refresh unread count: %w", err)
	}
	s.rec.ApplyUnread(n)
	s.subject.Notify(Event{Type: EventUnreadChanged, Unread: n})
	return n, nil
}

// MarkRead confirms a view with the server, then applies the local
// read transition and refreshes the unread total.
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	if err := s.api.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.rec.ApplyRead(messageID, time.Now().UTC())
	s.RefreshUnread(ctx)
	return nil
}

// DeleteMessage removes a message server-side and then locally.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	s.rec.ApplyDelete(messageID)
	return nil
}

// SearchUsers finds recipients to start a conversation with.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]message.UserRef, error) {
	users, err := s.api.SearchUsers(ctx, query, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// ResolveCounterpart fills in the counterpart snapshot when a chat is
// opened from a deep link. A failed or empty lookup keeps the
// placeholder; history merges will upgrade it later.
func (s *Service) ResolveCounterpart(ctx context.Context, counterpartID string) message.UserRef {
	users, err := s.api.SearchUsers(ctx, "", s.cfg.SearchLimit)
	if err == nil {
		for _, u := range users {
			if u.ID == counterpartID {
				s.store.SetCounterpart(counterpartID, u)
				return u
			}
		}
	}
	return s.store.View(counterpartID).Counterpart
}
