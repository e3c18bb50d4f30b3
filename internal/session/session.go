// Package session carries the authenticated identity through the
// messaging components. It replaces ambient token lookup: the session
// is built once at login and passed to every constructor, and torn
// down at logout.
package session

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("session token is required")

// Claims mirrors the custom claims the auth service puts in its
// tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// Session is the explicit session context. UserID decides message
// routing; Token is attached to every request and to the stream URL.
type Session struct {
	UserID string
	Handle string
	Token  string
}

// New parses the session token's claims to learn the current user.
// The signature is not checked here: verification is the server's
// job, the client only needs the identity baked into the token it was
// handed at login.
func New(token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}

	return &Session{
		UserID: claims.UserID,
		Handle: claims.Handle,
		Token:  token,
	}, nil
}
