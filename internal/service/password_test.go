package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Faaar")
	require.NoError(t, err)
	assert.True(t, h.Verify("Faaar", hash))
	assert.False(t, h.Verify("faaar", hash))
	assert.False(t, h.Verify("", hash))
}

func TestPasswordHasherFreshSalt(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasherMalformedHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	assert.NotPanics(t, func() {
		assert.False(t, h.Verify("x", "not-a-hash"))
		assert.False(t, h.Verify("x", ""))
		assert.False(t, h.Verify("x", "$2a$10$short"))
	})
}

func TestPasswordHasherBurn(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	assert.Empty(t, h.dummy)
	assert.False(t, h.Burn("annotatron-unknown-user"))
	require.NotEmpty(t, h.dummy)
	first := string(h.dummy)
	assert.False(t, h.Burn("other"))
	assert.Equal(t, first, string(h.dummy))
}

func TestPasswordHasherCostBounds(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(4).cost)

	// construction must not hash anything, so an extreme cost returns immediately
	h := NewPasswordHasher(99)
	assert.Equal(t, MaxPasswordCost, h.cost)
	assert.Empty(t, h.dummy)
}

func TestPasswordHasherTooLong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	_, err := h.Hash(strings.Repeat("ä", 40))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "password")
}
