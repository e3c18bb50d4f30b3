package chat

import (
	"context"
	"time"

	"privatemsg/internal/message"
	"privatemsg/internal/stream"
)

// AttachStream wires an open live channel into the reconciler and
// starts the pump goroutine. One channel at a time; a closed channel
// must be replaced by the caller, the service never reconnects.
func (s *Service) AttachStream(ch *stream.Channel) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.channel != nil {
		select {
		case <-s.channel.Done():
			// previous channel already terminated, replace it
		default:
			return ErrStreamAttached
		}
	}

	s.channel = ch
	s.pumpDone = make(chan struct{})
	go s.pump(ch, s.pumpDone)
	return nil
}

// StreamDone reports termination of the currently attached pump, or
// nil when no stream was ever attached.
func (s *Service) StreamDone() <-chan struct{} {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.pumpDone
}

// Close releases the live channel deterministically and waits for the
// pump to drain. Safe to call on every exit path, attached or not.
func (s *Service) Close() {
	s.streamMu.Lock()
	ch, done := s.channel, s.pumpDone
	s.channel = nil
	s.streamMu.Unlock()

	if ch != nil {
		ch.Close()
		<-done
	}
}

// pump drains the channel's single event sequence. Messages and read
// markers share one channel so a read marker is always applied after
// the message it refers to has been merged.
func (s *Service) pump(ch *stream.Channel, done chan struct{}) {
	defer close(done)

	for ev := range ch.Events() {
		switch {
		case ev.Message != nil:
			s.handleRemote(*ev.Message)
		case ev.Read != nil:
			s.handleRead(*ev.Read)
		}
	}
	s.subject.Notify(Event{Type: EventStreamClosed})
}

// handleRemote merges a pushed message. Events whose participants do
// not include the session user never touch any sequence, but the
// unread total is refreshed either way.
func (s *Service) handleRemote(m message.Message) {
	counterpartID, routed := s.rec.ApplyRemote(m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.RefreshUnread(ctx)

	if routed {
		s.subject.Notify(Event{
			Type:          EventNewMessage,
			CounterpartID: counterpartID,
			Message:       &m,
		})
	}
}

// handleRead applies the one-way read transition. An id we do not
// hold is a sequence no-op; the unread refresh still runs.
func (s *Service) handleRead(rd stream.ReadEvent) {
	s.rec.ApplyRead(rd.MessageID, time.Now().UTC())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.RefreshUnread(ctx)

	s.subject.Notify(Event{Type: EventMessageRead, MessageID: rd.MessageID})
}
