package service

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

// MaxPasswordCost is the highest bcrypt cost accepted. Each step doubles the work.
const MaxPasswordCost = 14

// PasswordHasher hashes and verifies passwords with bcrypt. The salt is generated per call
// and embedded in the returned hash.
type PasswordHasher struct {
	cost      int
	dummy     []byte
	dummyOnce sync.Once
}

// NewPasswordHasher clamps cost to [bcrypt.DefaultCost, MaxPasswordCost].
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	if cost > MaxPasswordCost {
		cost = MaxPasswordCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", appErrors.FieldError("password", "must be at most 72 bytes")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A malformed hash never matches.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Burn performs a verification against a throwaway hash and always reports false.
func (h *PasswordHasher) Burn(plaintext string) bool {
	// unknown usernames pay for one verification at the configured cost, like a wrong password
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("annotatron-unknown-user"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
	return false
}
