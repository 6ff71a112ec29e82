package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/annotatron-api/internal/models"
)

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("dummy hash: %v", err)
	}
	return &PasswordHasher{cost: bcrypt.MinCost, dummy: dummy}
}

type directoryFixture struct {
	clock   *testClock
	store   *memoryStore
	metrics *MetricsService
	tokens  *TokenService
	hasher  *PasswordHasher
	auth    *AuthService
	setup   *SetupService
	users   *UserService
}

func newDirectoryFixture(t *testing.T, cache setupCache) *directoryFixture {
	t.Helper()
	clock := newTestClock()
	store := newMemoryStore(clock)
	metrics := NewMetricsService()
	hasher := testHasher(t)
	validate := validator.New()

	tokens := NewTokenService(tokenStore{store}, zap.NewNop(), metrics, TokenConfig{})
	tokens.now = clock.Now

	auth := NewAuthService(store, tokens, hasher, validate, zap.NewNop(), metrics)
	auth.now = clock.Now
	users := NewUserService(store, hasher, validate, zap.NewNop())
	users.now = clock.Now

	return &directoryFixture{
		clock:   clock,
		store:   store,
		metrics: metrics,
		tokens:  tokens,
		hasher:  hasher,
		auth:    auth,
		setup:   NewSetupService(store, tokens, hasher, cache, validate, zap.NewNop(), metrics),
		users:   users,
	}
}

// bootstrap creates the initial administrator admin/Faaar.
func (f *directoryFixture) bootstrap(t *testing.T) *models.LoginResult {
	t.Helper()
	result, err := f.setup.CreateInitialUser(testContext(), models.CreateUserRequest{Username: "admin", Password: "Faaar"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return result
}

// addUser creates a user directly in the store with the given role and password.
func (f *directoryFixture) addUser(t *testing.T, username, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := f.store.Create(testContext(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func testContext() context.Context {
	return context.Background()
}
