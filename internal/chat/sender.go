package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"privatemsg/internal/message"
)

// Send validates and submits a message. Sends are serialized per
// counterpart to preserve order; different counterparts proceed
// independently. Under the optimistic policy a pending entry appears
// immediately and is replaced by the confirmation; either way exactly
// one server-confirmed entry ends up in the sequence, with the live
// echo of the same id deduplicated away.
func (s *Service) Send(ctx context.Context, counterpartID, text string) (message.Message, error) {
	text, err := message.ValidateText(text)
	if err != nil {
		return message.Message{}, err
	}
	if err := message.ValidateRecipient(counterpartID, s.sess.UserID); err != nil {
		return message.Message{}, err
	}

	s.mu.Lock()
	if s.sending[counterpartID] {
		s.mu.Unlock()
		return message.Message{}, ErrSendInFlight
	}
	s.sending[counterpartID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sending, counterpartID)
		s.mu.Unlock()
	}()

	var localID string
	if s.cfg.InsertOnSubmit {
		localID = "local-" + uuid.NewString()
		pending := message.Message{
			ID:        localID,
			Text:      text,
			CreatedAt: time.Now().UTC(),
			Sender:    message.UserRef{ID: s.sess.UserID, NickName: s.sess.Handle},
			Recipient: s.store.View(counterpartID).Counterpart,
		}
		s.rec.ApplyPending(counterpartID, pending)
	}

	confirmed, err := s.api.SendMessage(ctx, counterpartID, text)
	if err != nil {
		if localID != "" {
			s.rec.DropPending(localID)
		}
		// The caller keeps the text for a manual retry.
		return message.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.rec.ApplyConfirmed(counterpartID, confirmed, localID)
	s.subject.Notify(Event{
		Type:          EventNewMessage,
		CounterpartID: counterpartID,
		Message:       &confirmed,
	})
	return confirmed, nil
}
