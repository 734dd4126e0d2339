package service

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authrepo "github.com/AlibekovAA/panel-auth/internal/auth/repository"
	"github.com/AlibekovAA/panel-auth/internal/auth/revocation"
	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
	"github.com/AlibekovAA/panel-auth/internal/common/db"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/common/resilience"
	userdomain "github.com/AlibekovAA/panel-auth/internal/user/domain"
	userrepo "github.com/AlibekovAA/panel-auth/internal/user/repository"
)

const (
	testSecret     = "test-secret-0123456789abcdefghijklmnop"
	testAccessTTL  = 15 * time.Minute
	testRenewalTTL = 7 * 24 * time.Hour
)

var testStart = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *AuthService
	issuer *TokenIssuer
	store  *RenewalTokenStore
	cache  *revocation.MemoryCache
	clock  *clock.MockClock
	users  *fakeUserRepo
	conn   *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), nil, conn, db.DialectSQLite))

	log := logger.NewWithWriter(io.Discard, "auth-test", "DEBUG")
	clk := clock.NewMockClock(testStart)
	cache := revocation.NewMemoryCache(100, clk, log)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  5,
		Timeout:    5 * time.Second,
		ResetAfter: time.Minute,
		IsFailure:  IsStoreFailure,
		Logger:     log,
	})
	ids := commoncrypto.NewUUIDGenerator()

	issuer := NewTokenIssuer(testSecret, ids, testAccessTTL, clk, cache)
	store := NewRenewalTokenStore(
		authrepo.NewSQLiteRenewalTokenRepository(conn, log),
		commoncrypto.NewRandomTokenGenerator(32),
		ids,
		testRenewalTTL,
		clk,
		breaker,
		log,
	)
	users := newFakeUserRepo()
	svc := NewAuthService(users, issuer, store, cache, commoncrypto.NewBcryptHasher(bcrypt.MinCost), ids, breaker, clk, log)

	return &fixture{
		svc:    svc,
		issuer: issuer,
		store:  store,
		cache:  cache,
		clock:  clk,
		users:  users,
		conn:   conn,
	}
}

func (f *fixture) createUser(t *testing.T, email, password, role string) userdomain.User {
	t.Helper()
	user, err := f.svc.CreateUser(context.Background(), CreateUserInput{
		Email:    email,
		Name:     "Test User",
		Password: password,
		Role:     role,
		OrgUnit:  "U01",
		Regions:  []string{"north"},
	})
	require.NoError(t, err)
	return user
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[userdomain.ID]userdomain.User

	FindByIDFunc func(ctx context.Context, id userdomain.ID) (userdomain.User, error)
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[userdomain.ID]userdomain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return userrepo.ErrEmailAlreadyExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return userdomain.User{}, userrepo.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) setActive(id userdomain.ID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.Active = active
	r.users[id] = u
}
