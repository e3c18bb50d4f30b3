// Package client implements the REST side of the private-messaging
// API. Every response is wrapped in the common envelope
// {success, data, error, code}; envelope failures surface as APIError
// with the server's error code attached.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"privatemsg/internal/config"
	"privatemsg/internal/message"
	"privatemsg/internal/session"
)

// ErrMissingData marks a response that claimed success but carried no
// payload. Treated like a transport failure, never a crash.
var ErrMissingData = errors.New("response missing expected data")

// APIError is a server-reported failure, carrying the machine-readable
// code from the envelope (VALIDATION_ERROR, USER_NOT_FOUND, ...).
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error (http %d): %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// ConversationPage is one window of a conversation's history.
type ConversationPage struct {
	Conversation []message.Message `json:"conversation"`
	Total        int               `json:"total"`
	HasMore      bool              `json:"hasMore"`
}

type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Session
}

func NewClient(cfg *config.Config, sess *session.Session) *Client {
	return &Client{
		baseURL: cfg.API.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout()},
		sess:    sess,
	}
}

// SendMessage posts a new private message and returns the confirmed
// message with its server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) (message.Message, error) {
	body := map[string]string{
		"recipient_id": recipientID,
		"text":         text,
	}
	var m message.Message
	if err := c.do(ctx, http.MethodPost, "/messages-private", nil, body, &m); err != nil {
		return message.Message{}, err
	}
	if m.ID == "" {
		return message.Message{}, ErrMissingData
	}
	return m, nil
}

// Conversation fetches one history page for the given counterpart.
func (c *Client) Conversation(ctx context.Context, userID string, limit, offset int) (ConversationPage, error) {
	query := url.Values{
		"limit":  []string{strconv.Itoa(limit)},
		"offset": []string{strconv.Itoa(offset)},
	}
	var page ConversationPage
	err := c.do(ctx, http.MethodGet, "/messages-private/conversation/"+url.PathEscape(userID), query, nil, &page)
	if err != nil {
		return ConversationPage{}, err
	}
	return page, nil
}

// Conversations fetches the full summary list.
func (c *Client) Conversations(ctx context.Context) ([]message.ConversationSummary, error) {
	var list []message.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/messages-private/conversations", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkRead tells the server the message was viewed.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPut, "/messages-private/"+url.PathEscape(messageID)+"/read", nil, nil, nil)
}

// UnreadCount returns the server-authoritative unread total.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var data struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages-private/unread-count", nil, nil, &data); err != nil {
		return 0, err
	}
	return data.UnreadCount, nil
}

// DeleteMessage removes a message; only the sender may do this.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/messages-private/"+url.PathEscape(messageID), nil, nil, nil)
}

// SearchUsers looks up users to pick a recipient from.
func (c *Client) SearchUsers(ctx context.Context, search string, limit int) ([]message.UserRef, error) {
	query := url.Values{
		"search": []string{search},
		"limit":  []string{strconv.Itoa(limit)},
	}
	var users []message.UserRef
	if err := c.do(ctx, http.MethodGet, "/users", query, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// do runs one request/response cycle: attach the bearer token, encode
// the body, unwrap the envelope, decode data into out when asked for.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response for %s %s: %w", method, path, err)
	}

	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Code: env.Code, Message: msg, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return ErrMissingData
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data for %s %s: %w", method, path, err)
	}
	return nil
}
