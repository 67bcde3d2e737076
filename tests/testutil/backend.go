package testutil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/nyord-notifier/internal/devserver"
	"github.com/nhle/nyord-notifier/internal/session"
)

// Backend is a running devserver with one registered user.
type Backend struct {
	*devserver.Server

	BaseURL string
	WSURL   string
	UserID  int64
	Token   string
}

// NewBackend starts a devserver on a loopback port and registers "alice".
// The server is shut down when the test completes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	srv := devserver.New("test-secret")
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	b := &Backend{
		Server:  srv,
		BaseURL: hs.URL,
		WSURL:   "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws",
		UserID:  srv.AddUser("alice", "pw"),
	}
	token, err := srv.IssueToken(b.UserID)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	b.Token = token
	return b
}

// Session returns the session for the registered user's token.
func (b *Backend) Session(t *testing.T) session.Session {
	t.Helper()
	s, err := session.FromToken(b.Token)
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}
	return s
}
