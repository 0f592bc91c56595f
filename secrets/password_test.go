package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStrengthOrdering(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short wins first", "aB1!", ErrPasswordTooShort},
		{"short and missing everything still reports length", "abc", ErrPasswordTooShort},
		{"uppercase before lowercase", "abcdefg1!", ErrPasswordNoUpper},
		{"lowercase after uppercase satisfied", "ABCDEFG1!", ErrPasswordNoLower},
		{"digit after cases satisfied", "Abcdefgh!", ErrPasswordNoDigit},
		{"special reported last", "Abcdefg1", ErrPasswordNoSymbol},
		{"valid", "Str0ng!Pass", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStrength(tc.password)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHasherRoundTrip(t *testing.T) {
	h, err := NewHasher(4) // minimum cost keeps the test fast
	require.NoError(t, err)

	hash, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!Pass", hash)

	assert.True(t, h.Verify("Str0ng!Pass", hash))
	assert.False(t, h.Verify("Str0ng!Pass2", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHasherSaltsIndependently(t *testing.T) {
	h, err := NewHasher(4)
	require.NoError(t, err)

	first, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	second, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHasherNeedsUpgrade(t *testing.T) {
	low, err := NewHasher(4)
	require.NoError(t, err)
	high, err := NewHasher(10)
	require.NoError(t, err)

	hash, err := low.Hash("Str0ng!Pass")
	require.NoError(t, err)

	up, err := high.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.True(t, up)

	up, err = low.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.False(t, up)
}

func TestHasherDefaultCost(t *testing.T) {
	h, err := NewHasher(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, h.Cost())

	_, err = NewHasher(99)
	assert.Error(t, err)
}
