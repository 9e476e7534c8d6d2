package accounts_test

import (
	"encoding/hex"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenIsOpaqueAndUnique(t *testing.T) {
	a := accounts.NewToken()
	b := accounts.NewToken()

	assert.NotEqual(t, a, b)
	// cuid prefix plus 32 bytes of hex
	assert.GreaterOrEqual(t, len(a), 64)
}

func TestGenerateTokenRaisesShortLengths(t *testing.T) {
	token := accounts.GenerateToken(1)
	// at least 16 bytes of entropy regardless of what the caller asked for
	assert.GreaterOrEqual(t, len(token), 32)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	token := accounts.NewToken()

	first := accounts.HashToken(token)
	second := accounts.HashToken(token)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, accounts.HashToken(token+"x"))

	require.Len(t, first, 64)
	_, err := hex.DecodeString(first)
	require.NoError(t, err)
}
