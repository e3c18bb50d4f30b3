package message

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxTextLength = 1000

var (
	ErrEmptyText   = errors.New("message text cannot be empty")
	ErrTextTooLong = errors.New("message text exceeds 1000 characters")
	ErrNoRecipient = errors.New("recipient id is required")
	ErrSelfMessage = errors.New("cannot send a message to yourself")
)

// ValidateText trims the text and checks the 1..1000 code point bounds.
// Returns the trimmed text; callers send exactly what was validated.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}

// ValidateRecipient checks the recipient before any network call.
func ValidateRecipient(recipientID, selfID string) error {
	if strings.TrimSpace(recipientID) == "" {
		return ErrNoRecipient
	}
	if recipientID == selfID {
		return ErrSelfMessage
	}
	return nil
}
