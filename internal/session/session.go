// Package session describes the authenticated user a Provider runs for.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/nyord-notifier/internal/model"
)

// Session is the identity the channel and store are bound to.
type Session struct {
	Token     string
	UserID    model.ID
	Username  string
	ExpiresAt time.Time
}

// Valid reports whether both a token and a user identity are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// SameIdentity reports whether s and o belong to the same login.
func (s Session) SameIdentity(o Session) bool {
	return s.Token == o.Token && s.UserID == o.UserID
}

// Expired reports whether the token's exp claim is in the past.
// Tokens without an exp never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ErrNoIdentity is returned when the token carries neither user_id nor sub.
var ErrNoIdentity = errors.New("token carries no user identity")

// FromToken builds a Session from a backend-issued JWT. The signature is
// not verified; the backend does that on every request.
func FromToken(token string) (Session, error) {
	if token == "" {
		return Session{}, nil
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("parsing session token: %w", err)
	}

	s := Session{Token: token}

	switch v := claims["user_id"].(type) {
	case float64:
		s.UserID = model.ID(strconv.FormatInt(int64(v), 10))
	case string:
		s.UserID = model.ID(v)
	}
	if s.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			s.UserID = model.ID(sub)
		}
	}
	if s.UserID == "" {
		return Session{}, ErrNoIdentity
	}

	if name, ok := claims["username"].(string); ok {
		s.Username = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}

	return s, nil
}
