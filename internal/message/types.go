package message

import (
	"time"
)

// UserRef is the snapshot of a user as embedded in fetched messages.
// It reflects the profile at fetch time and may be stale.
type UserRef struct {
	ID         string `json:"id"`
	NickName   string `json:"nickName"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	AvatarURL  string `json:"avatarURL,omitempty"`
}

// Placeholder builds a minimal UserRef when only the id is known,
// e.g. opening a chat from a deep link before any history arrived.
func Placeholder(userID string) UserRef {
	return UserRef{ID: userID, NickName: "user"}
}

// Message is a single private message. Immutable once the server has
// assigned its ID; only ReadAt may transition from nil to a timestamp.
type Message struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	Sender    UserRef    `json:"sender"`
	Recipient UserRef    `json:"recipient"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// Before reports whether m sorts before other: ascending by creation
// timestamp, ties broken by id for determinism.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// Counterpart returns the participant that is not selfID, along with
// whether either participant matched selfID at all. Messages where
// neither side is the session user do not belong to any conversation
// of this session.
func (m Message) Counterpart(selfID string) (UserRef, bool) {
	switch selfID {
	case m.Sender.ID:
		return m.Recipient, true
	case m.Recipient.ID:
		return m.Sender, true
	}
	return UserRef{}, false
}

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	User        UserRef `json:"user"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}
