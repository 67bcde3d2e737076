package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/nyord-notifier/internal/model"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestFromToken_NumericUserID(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := sign(t, jwt.MapClaims{"user_id": 42, "exp": exp.Unix(), "username": "alice"})

	s, err := FromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, model.ID("42"), s.UserID)
	assert.Equal(t, "alice", s.Username)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.True(t, s.Valid())
	assert.False(t, s.Expired(time.Now()))
}

func TestFromToken_FallsBackToSubject(t *testing.T) {
	s, err := FromToken(sign(t, jwt.MapClaims{"sub": "u-7"}))
	require.NoError(t, err)
	assert.Equal(t, model.ID("u-7"), s.UserID)
	assert.True(t, s.ExpiresAt.IsZero())
	assert.False(t, s.Expired(time.Now()))
}

func TestFromToken_NoIdentity(t *testing.T) {
	_, err := FromToken(sign(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}))
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestFromToken_EmptyAndGarbage(t *testing.T) {
	s, err := FromToken("")
	require.NoError(t, err)
	assert.False(t, s.Valid())

	_, err = FromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestSameIdentity(t *testing.T) {
	a := Session{Token: "t1", UserID: "1"}
	assert.True(t, a.SameIdentity(Session{Token: "t1", UserID: "1", Username: "x"}))
	assert.False(t, a.SameIdentity(Session{Token: "t2", UserID: "1"}))
	assert.False(t, a.SameIdentity(Session{Token: "t1", UserID: "2"}))
}
