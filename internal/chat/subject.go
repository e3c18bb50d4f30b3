package chat

import (
	"log"
	"sync"

	"privatemsg/internal/message"
)

type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventMessageRead    EventType = "message_read"
	EventUnreadChanged  EventType = "unread_changed"
	EventScrollToNewest EventType = "scroll_to_newest"
	EventStreamClosed   EventType = "stream_closed"
)

// Event is what UI collaborators receive. CounterpartID is set for
// conversation-scoped events; Message for new-message events.
type Event struct {
	Type          EventType
	CounterpartID string
	Message       *message.Message
	MessageID     string
	Unread        int
}

type Observer interface {
	Update(event Event) error
	Name() string
}

// Subject fans events out to subscribed observers. Unsubscribing is
// how a view detaches; the store keeps its state either way.
type Subject struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewSubject() *Subject {
	return &Subject{}
}

func (s *Subject) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Subject) Unsubscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject) Notify(event Event) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, o := range observers {
		if err := o.Update(event); err != nil {
			log.Printf("observer %s failed on %s: %v", o.Name(), event.Type, err)
		}
	}
}
