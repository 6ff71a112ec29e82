package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryStore backs both the user and token repository interfaces with the same
// constraints the SQL schema enforces.
type memoryStore struct {
	mu          sync.Mutex
	clock       *testClock
	nextUserID  uint64
	nextTokenID uint64
	users       map[uint64]*models.User
	tokens      map[string]*models.Token

	// forcedCollisions makes the next n token inserts report a collision.
	forcedCollisions int
	// failWith is returned by every call while set.
	failWith error
}

func newMemoryStore(clock *testClock) *memoryStore {
	return &memoryStore{
		clock:  clock,
		users:  map[uint64]*models.User{},
		tokens: map[string]*models.Token{},
	}
}

func (m *memoryStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Username == username && u.DeactivatedAt == nil {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok || u.DeactivatedAt != nil {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var matched []models.User
	for _, u := range m.users {
		if u.DeactivatedAt != nil {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		matched = append(matched, *u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memoryStore) CountActiveAdministrators(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.activeAdministrators(), nil
}

func (m *memoryStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	return m.insertUser(user)
}

func (m *memoryStore) CreateInitialAdministrator(ctx context.Context, user *models.User, token *models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.activeAdministrators() > 0 {
		return repository.ErrAdministratorExists
	}
	if m.usernameTaken(user.Username) {
		return repository.ErrDuplicate
	}
	if m.tokenCollides(token.Token) {
		return repository.ErrTokenCollision
	}

	user.Role = models.RoleAdministrator
	if err := m.insertUser(user); err != nil {
		return err
	}
	token.UserID = user.ID
	m.insertToken(token)
	return nil
}

func (m *memoryStore) UpdatePasswordAndRevokeTokens(ctx context.Context, id uint64, passwordHash string, resetNeeded bool, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[id]
	if !ok || u.DeactivatedAt != nil {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.PasswordResetNeeded = resetNeeded
	u.PasswordLastChanged = &changedAt
	m.deleteTokensOf(id)
	return nil
}

func (m *memoryStore) Deactivate(ctx context.Context, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[id]
	if !ok || u.DeactivatedAt != nil {
		return sql.ErrNoRows
	}
	if u.Role == models.RoleAdministrator && m.activeAdministrators() <= 1 {
		return repository.ErrLastAdministrator
	}
	u.DeactivatedAt = &at
	m.deleteTokensOf(id)
	return nil
}

func (m *memoryStore) SetRole(ctx context.Context, id uint64, role models.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[id]
	if !ok || u.DeactivatedAt != nil {
		return sql.ErrNoRows
	}
	if u.Role == models.RoleAdministrator && role != models.RoleAdministrator && m.activeAdministrators() <= 1 {
		return repository.ErrLastAdministrator
	}
	u.Role = role
	return nil
}

func (m *memoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	return m.purge(now), nil
}

// tokenStore adapts memoryStore to the token repository interface, whose Create and
// PurgeExpired signatures overlap with the user repository.
type tokenStore struct {
	*memoryStore
}

func (t tokenStore) Create(ctx context.Context, token *models.Token) error {
	m := t.memoryStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.purge(m.clock.Now())
	if m.tokenCollides(token.Token) {
		return repository.ErrTokenCollision
	}
	m.insertToken(token)
	return nil
}

func (t tokenStore) FindLatestByUser(ctx context.Context, userID uint64) (*models.Token, error) {
	m := t.memoryStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var latest *models.Token
	now := m.clock.Now()
	for _, tok := range m.tokens {
		if tok.UserID != userID || !tok.Live(now) {
			continue
		}
		if latest == nil || tok.CreatedAt.After(latest.CreatedAt) {
			latest = tok
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	clone := *latest
	return &clone, nil
}

func (t tokenStore) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	m := t.memoryStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.purge(m.clock.Now())
	tok, ok := m.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u, ok := m.users[tok.UserID]
	if !ok || u.DeactivatedAt != nil {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (t tokenStore) DeleteByUser(ctx context.Context, userID uint64) error {
	m := t.memoryStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.deleteTokensOf(userID)
	return nil
}

func (t tokenStore) DeleteByValue(ctx context.Context, token string) error {
	m := t.memoryStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.tokens, token)
	return nil
}

func (m *memoryStore) tokensOf(userID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tok := range m.tokens {
		if tok.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memoryStore) user(id uint64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memoryStore) activeAdministrators() int {
	n := 0
	for _, u := range m.users {
		if u.Role == models.RoleAdministrator && u.DeactivatedAt == nil {
			n++
		}
	}
	return n
}

func (m *memoryStore) usernameTaken(username string) bool {
	for _, u := range m.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

func (m *memoryStore) insertUser(user *models.User) error {
	if m.usernameTaken(user.Username) {
		return repository.ErrDuplicate
	}
	m.nextUserID++
	user.ID = m.nextUserID
	user.CreatedAt = m.clock.Now()
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memoryStore) tokenCollides(value string) bool {
	if m.forcedCollisions > 0 {
		m.forcedCollisions--
		return true
	}
	tok, ok := m.tokens[value]
	return ok && tok.Live(m.clock.Now())
}

func (m *memoryStore) insertToken(token *models.Token) {
	m.nextTokenID++
	token.ID = m.nextTokenID
	// ids break ties between tokens created at the same instant
	token.CreatedAt = m.clock.Now().Add(time.Duration(m.nextTokenID))
	clone := *token
	m.tokens[token.Token] = &clone
}

func (m *memoryStore) deleteTokensOf(userID uint64) {
	for value, tok := range m.tokens {
		if tok.UserID == userID {
			delete(m.tokens, value)
		}
	}
}

func (m *memoryStore) purge(now time.Time) int64 {
	var purged int64
	for value, tok := range m.tokens {
		if !tok.Live(now) {
			delete(m.tokens, value)
			purged++
		}
	}
	return purged
}
