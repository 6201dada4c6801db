package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
	assert.Equal(t, 10, NewHasher(10).Cost())
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hashed, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)

	assert.True(t, h.Compare(hashed, "s3cret"))
	assert.False(t, h.Compare(hashed, "wrong"))
	assert.False(t, h.Compare("not-a-hash", "s3cret"))
}
