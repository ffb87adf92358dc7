package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSHA256(t *testing.T) {
	h, err := NewHMACSHA256([]byte("k1"))
	require.NoError(t, err)

	a, err := h.Hash("user1|123456")
	require.NoError(t, err)
	b, err := h.Hash("user1|123456")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.True(t, h.Verify(string(a), "user1|123456"))
	assert.False(t, h.Verify(string(a), "user2|123456"))

	other, err := NewHMACSHA256([]byte("k2"))
	require.NoError(t, err)
	c, _ := other.Hash("user1|123456")
	assert.NotEqual(t, a, c)
}

func TestNewHMACSHA256_EmptySecret(t *testing.T) {
	_, err := NewHMACSHA256(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
