package secrets

import (
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenHexLength(t *testing.T) {
	for _, n := range []int{1, 16, 32, 64} {
		tok, err := Token(n)
		require.NoError(t, err)
		assert.Len(t, tok, n*2)

		_, err = hex.DecodeString(tok)
		assert.NoError(t, err)
	}

	_, err := Token(0)
	assert.Error(t, err)
	_, err = Token(-5)
	assert.Error(t, err)
}

func TestNewAPIKeyPair(t *testing.T) {
	pair, err := NewAPIKeyPair()
	require.NoError(t, err)

	assert.Len(t, pair.Key, 64)     // 32 bytes hex
	assert.Len(t, pair.Secret, 128) // 64 bytes hex
	assert.NotEqual(t, pair.Key, pair.Secret[:len(pair.Key)])

	other, err := NewAPIKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, pair.Key, other.Key)
	assert.NotEqual(t, pair.Secret, other.Secret)
}

func TestBackupCodesRange(t *testing.T) {
	codes, err := BackupCodes(16)
	require.NoError(t, err)
	require.Len(t, codes, 16)

	for _, code := range codes {
		assert.Len(t, code, 8)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10_000_000)
		assert.LessOrEqual(t, n, 99_999_999)
	}

	_, err = BackupCodes(0)
	assert.Error(t, err)
}
