package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "nyord-notifier"

// TokenKey is the keyring entry holding the session token.
const TokenKey = "session-token"

// Open returns the OS keyring, falling back to an encrypted file under
// configDir on systems without a native backend.
func Open(configDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("nyord-notifier-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Tokens stores the session token in a keyring.
type Tokens struct {
	ring keyring.Keyring
}

// NewTokens wraps ring.
func NewTokens(ring keyring.Keyring) *Tokens {
	return &Tokens{ring: ring}
}

// Get returns the stored token, or "" when none is stored.
func (t *Tokens) Get() (string, error) {
	item, err := t.ring.Get(TokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", TokenKey, err)
	}
	return string(item.Data), nil
}

// Set stores token.
func (t *Tokens) Set(token string) error {
	err := t.ring.Set(keyring.Item{
		Key:         TokenKey,
		Data:        []byte(token),
		Label:       "Nyord session token",
		Description: "Bearer token for the Nyord banking API",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey, err)
	}
	return nil
}

// Delete removes the stored token. Deleting a missing token is not an
// error.
func (t *Tokens) Delete() error {
	err := t.ring.Remove(TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey, err)
	}
	return nil
}
