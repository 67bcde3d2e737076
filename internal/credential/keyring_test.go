package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	tokens := NewTokens(keyring.NewArrayKeyring(nil))

	got, err := tokens.Get()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, tokens.Set("jwt-1"))
	got, err = tokens.Get()
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", got)

	require.NoError(t, tokens.Delete())
	require.NoError(t, tokens.Delete())

	got, err = tokens.Get()
	require.NoError(t, err)
	assert.Empty(t, got)
}
