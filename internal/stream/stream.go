// Package stream maintains the live event channel: one long-lived
// server-sent-events connection per session, decoded into "new
// message" and "message read" signals. A channel is one-shot — once
// closed, by either side, it never reopens; callers reconnect by
// opening a new one.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"privatemsg/internal/message"
)

const (
	eventNewMessage  = "new_message_private"
	eventMessageRead = "message_read"
)

// ErrNoToken is returned when the session has no token: the stream is
// simply disabled, not retried.
var ErrNoToken = errors.New("stream requires a session token")

// ReadEvent identifies a message that was read on the other side.
type ReadEvent struct {
	MessageID string `json:"messageId"`
}

// Event is one decoded push event: exactly one of Message or Read is
// set. Both kinds flow through a single channel so consumers see them
// in the order the server sent them; a read for a message may never
// overtake the message itself.
type Event struct {
	Message *message.Message
	Read    *ReadEvent
}

// Channel is an open live event connection. Events carries decoded
// events in server order; Done closes when the connection terminates
// for any reason.
type Channel struct {
	events  chan Event
	done    chan struct{}
	closing chan struct{}
	body    io.ReadCloser

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Open connects to the push endpoint. The connection stays up until
// Close is called or the server drops it; there is no automatic
// reconnect.
func Open(ctx context.Context, baseURL, token string) (*Channel, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	u := baseURL + "/stream/messages-private?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No client timeout: the connection is meant to stay open.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	ch := &Channel{
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		body:    resp.Body,
	}
	go ch.pump()
	return ch, nil
}

func (ch *Channel) Events() <-chan Event { return ch.events }

// Done closes when the channel has terminated and no further events
// will be delivered.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

// Err reports why the channel terminated; nil after a clean Close.
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.err
}

// Close tears the connection down. Terminal and idempotent.
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		close(ch.closing)
		ch.body.Close()
	})
}

// pump scans the wire format: "event:" and "data:" lines accumulate
// until a blank line dispatches the event. Events that fail to decode
// are skipped, not fatal.
func (ch *Channel) pump() {
	defer func() {
		ch.body.Close()
		close(ch.events)
		close(ch.done)
	}()

	scanner := bufio.NewScanner(ch.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			ch.dispatch(event, data.Bytes())
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-ch.closing:
			// deliberate close, not a stream failure
		default:
			ch.mu.Lock()
			ch.err = err
			ch.mu.Unlock()
		}
	}
}

func (ch *Channel) dispatch(event string, data []byte) {
	if len(data) == 0 {
		return
	}
	switch event {
	case eventNewMessage:
		var m message.Message
		if err := json.Unmarshal(data, &m); err != nil || m.ID == "" {
			log.Printf("stream: skipping undecodable %s event: %v", event, err)
			return
		}
		ch.deliver(Event{Message: &m})
	case eventMessageRead:
		var r ReadEvent
		if err := json.Unmarshal(data, &r); err != nil || r.MessageID == "" {
			log.Printf("stream: skipping undecodable %s event: %v", event, err)
			return
		}
		ch.deliver(Event{Read: &r})
	}
}

func (ch *Channel) deliver(ev Event) {
	select {
	case ch.events <- ev:
	case <-ch.closing:
	}
}
