// Package fakeserver is an in-process double of the messaging backend
// for tests: the seven REST routes with the response envelope, plus
// the SSE push endpoint. State lives in memory and events can be
// emitted directly to connected streams.
package fakeserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"privatemsg/internal/message"
)

type sseEvent struct {
	name string
	data []byte
}

type Server struct {
	mu       sync.Mutex
	selfID   string
	users    []message.UserRef
	messages []message.Message
	seq      int
	failNext map[string]bool
	subs     map[chan sseEvent]struct{}
}

// New builds a server whose authenticated user is selfID.
func New(selfID string) *Server {
	return &Server{
		selfID:   selfID,
		failNext: make(map[string]bool),
		subs:     make(map[chan sseEvent]struct{}),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/messages-private", s.sendMessage).Methods("POST")
	router.HandleFunc("/messages-private/conversation/{userId}", s.conversation).Methods("GET")
	router.HandleFunc("/messages-private/conversations", s.conversations).Methods("GET")
	router.HandleFunc("/messages-private/unread-count", s.unreadCount).Methods("GET")
	router.HandleFunc("/messages-private/{id}/read", s.markRead).Methods("PUT")
	router.HandleFunc("/messages-private/{id}", s.deleteMessage).Methods("DELETE")
	router.HandleFunc("/users", s.searchUsers).Methods("GET")
	router.HandleFunc("/stream/messages-private", s.stream).Methods("GET")

	return router
}

// AddUser registers a known user.
func (s *Server) AddUser(u message.UserRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// Seed installs history without emitting events.
func (s *Server) Seed(msgs ...message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// FailNext makes the next call to the named operation ("send",
// "conversation", "conversations", "unread", "read", "delete",
// "users") answer with an INTERNAL_ERROR envelope.
func (s *Server) FailNext(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = true
}

// EmitNewMessage pushes a new_message_private event to every stream
// and records the message server-side.
func (s *Server) EmitNewMessage(m message.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.broadcast("new_message_private", m)
}

// EmitRead pushes a message_read event to every stream.
func (s *Server) EmitRead(messageID string) {
	s.broadcast("message_read", map[string]string{"messageId": messageID})
}

func (s *Server) broadcast(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub <- sseEvent{name: name, data: data}:
		default:
		}
	}
}

func (s *Server) takeFailure(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext[op] {
		delete(s.failNext, op)
		return true
	}
	return false
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusUnauthorized, "AUTH_ERROR", "missing token")
		return false
	}
	return true
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("send") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	var body struct {
		RecipientID string `json:"recipient_id"`
		Text        string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	text, err := message.ValidateText(body.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if body.RecipientID == s.selfID {
		writeError(w, http.StatusBadRequest, "SELF_MESSAGE_ERROR", "cannot message yourself")
		return
	}

	s.mu.Lock()
	var recipient *message.UserRef
	var sender message.UserRef
	for i := range s.users {
		if s.users[i].ID == body.RecipientID {
			recipient = &s.users[i]
		}
		if s.users[i].ID == s.selfID {
			sender = s.users[i]
		}
	}
	if recipient == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "recipient not found")
		return
	}
	if sender.ID == "" {
		sender = message.UserRef{ID: s.selfID}
	}
	s.seq++
	m := message.Message{
		ID:        fmt.Sprintf("srv-%d", s.seq),
		Text:      text,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Sender:    sender,
		Recipient: *recipient,
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	// Echo over the live channel like the real backend does.
	s.broadcast("new_message_private", m)
	writeEnvelope(w, http.StatusCreated, m)
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("conversation") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	userID := mux.Vars(r)["userId"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	var all []message.Message
	for _, m := range s.messages {
		if (m.Sender.ID == s.selfID && m.Recipient.ID == userID) ||
			(m.Sender.ID == userID && m.Recipient.ID == s.selfID) {
			all = append(all, m)
		}
	}
	s.mu.Unlock()

	// Newest-bounded window: offset 0 is the most recent page.
	sort.Slice(all, func(i, j int) bool { return all[j].Before(all[i]) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := all[offset:end]

	// Chronological within the page.
	page := make([]message.Message, len(window))
	for i, m := range window {
		page[len(window)-1-i] = m
	}

	writeEnvelope(w, http.StatusOK, map[string]any{
		"conversation": page,
		"total":        total,
		"hasMore":      end < total,
	})
}

func (s *Server) conversations(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("conversations") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[string]message.Message)
	unread := make(map[string]int)
	refs := make(map[string]message.UserRef)
	for _, m := range s.messages {
		other, ok := m.Counterpart(s.selfID)
		if !ok {
			continue
		}
		if last, seen := latest[other.ID]; !seen || last.Before(m) {
			latest[other.ID] = m
		}
		refs[other.ID] = other
		if m.Recipient.ID == s.selfID && m.ReadAt == nil {
			unread[other.ID]++
		}
	}

	list := make([]message.ConversationSummary, 0, len(latest))
	for id, last := range latest {
		list = append(list, message.ConversationSummary{
			User:        refs[id],
			LastMessage: last,
			UnreadCount: unread[id],
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[j].LastMessage.Before(list[i].LastMessage)
	})
	writeEnvelope(w, http.StatusOK, list)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("unread") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	s.mu.Lock()
	count := 0
	for _, m := range s.messages {
		if m.Recipient.ID == s.selfID && m.ReadAt == nil {
			count++
		}
	}
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("read") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	id := mux.Vars(r)["id"]
	s.mu.Lock()
	found := false
	for i := range s.messages {
		if s.messages[i].ID == id && s.messages[i].ReadAt == nil {
			now := time.Now().UTC()
			s.messages[i].ReadAt = &now
			found = true
		}
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "MESSAGE_NOT_FOUND", "message not found")
		return
	}

	s.broadcast("message_read", map[string]string{"messageId": id})
	writeEnvelope(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("delete") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			writeEnvelope(w, http.StatusOK, map[string]bool{"deleted": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "MESSAGE_NOT_FOUND", "message not found")
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if s.takeFailure("users") {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []message.UserRef{}
	for _, u := range s.users {
		if search == "" || strings.Contains(strings.ToLower(u.NickName), search) {
			out = append(out, u)
		}
		if len(out) == limit {
			break
		}
	}
	writeEnvelope(w, http.StatusOK, out)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Register before the headers go out so a client that has seen
	// the response is guaranteed to receive later emissions.
	sub := make(chan sseEvent, 32)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-sub:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}
