package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
)

var laptop = authdomain.DeviceInfo{UserAgent: "Mozilla/5.0", IP: "10.1.1.1", Name: "laptop"}

func TestRenewalTokenStore_IssueAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	assert.Len(t, rec.Token, 64)
	assert.Equal(t, commoncrypto.HashToken(rec.Token), rec.TokenHash)
	assert.True(t, rec.ExpiresAt.Equal(testStart.Add(testRenewalTTL)))
	assert.False(t, rec.Revoked)

	f.clock.Advance(time.Hour)
	got, err := f.store.Verify(ctx, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "user-1", got.SubjectID)
	assert.Empty(t, got.Token)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(testStart.Add(time.Hour)))
}

func TestRenewalTokenStore_IssueRequiresSubject(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Issue(context.Background(), "", laptop)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRenewalTokenStore_VerifyUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.store.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRenewalTokenStore_VerifyExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	f.clock.Advance(testRenewalTTL)
	_, err = f.store.Verify(ctx, rec.Token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRenewalTokenStore_RotateInvalidatesPredecessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	next, err := f.store.Rotate(ctx, old.Token, "user-1", authdomain.DeviceInfo{})
	require.NoError(t, err)

	assert.NotEqual(t, old.Token, next.Token)
	assert.Equal(t, "user-1", next.SubjectID)
	assert.Equal(t, laptop, next.Device)
	assert.True(t, next.ExpiresAt.Equal(testStart.Add(time.Minute).Add(testRenewalTTL)))

	_, err = f.store.Verify(ctx, old.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.store.Rotate(ctx, old.Token, "", authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.store.Verify(ctx, next.Token)
	assert.NoError(t, err)
}

func TestRenewalTokenStore_RotateReplacesDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	phone := authdomain.DeviceInfo{UserAgent: "iOS", IP: "10.2.2.2", Name: "phone"}
	next, err := f.store.Rotate(ctx, old.Token, "", phone)
	require.NoError(t, err)
	assert.Equal(t, phone, next.Device)
}

func TestRenewalTokenStore_RotateExpiredRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	f.clock.Advance(testRenewalTTL + time.Second)
	_, err = f.store.Rotate(ctx, old.Token, "", authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrExpiredToken)

	count, err := f.store.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired record must be left unrevoked and no successor created")
}

func TestRenewalTokenStore_RotateSubjectMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	_, err = f.store.Rotate(ctx, old.Token, "user-2", authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.store.Verify(ctx, old.Token)
	assert.NoError(t, err)
}

func TestRenewalTokenStore_ConcurrentRotateHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.store.Rotate(ctx, old.Token, "", authdomain.DeviceInfo{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, ErrTokenNotFound):
				notFound++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, notFound)

	live, err := f.store.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}

func TestRenewalTokenStore_RevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	revoked, err := f.store.Revoke(ctx, rec.Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = f.store.Revoke(ctx, rec.Token)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = f.store.Revoke(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = f.store.Verify(ctx, rec.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRenewalTokenStore_RevokeAllForSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		rec, err := f.store.Issue(ctx, "user-1", laptop)
		require.NoError(t, err)
		tokens = append(tokens, rec.Token)
	}
	other, err := f.store.Issue(ctx, "user-2", laptop)
	require.NoError(t, err)

	count, err := f.store.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, tok := range tokens {
		_, err := f.store.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}

	_, err = f.store.Verify(ctx, other.Token)
	assert.NoError(t, err)

	count, err = f.store.RevokeAllForSubject(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRenewalTokenStore_CleanupExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiring, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)

	f.clock.Advance(4 * 24 * time.Hour)
	live, err := f.store.Issue(ctx, "user-1", laptop)
	require.NoError(t, err)
	revoked, err := f.store.Issue(ctx, "user-2", laptop)
	require.NoError(t, err)
	_, err = f.store.Revoke(ctx, revoked.Token)
	require.NoError(t, err)

	f.clock.Advance(4 * 24 * time.Hour)
	deleted, err := f.store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = f.store.Verify(ctx, live.Token)
	assert.NoError(t, err)
	_, err = f.store.Verify(ctx, expiring.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRenewalTokenStore_Unavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Close())

	_, err := f.store.Issue(context.Background(), "user-1", laptop)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = f.store.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = f.store.Revoke(context.Background(), "token")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRenewalTokenStore_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.store.Issue(ctx, "user-1", laptop)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRenewalTokenStore_CancelledCallersDoNotOpenBreaker(t *testing.T) {
	f := newFixture(t)

	rec, err := f.store.Issue(context.Background(), "user-1", laptop)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.store.Verify(ctx, rec.Token)
		require.Error(t, err)
	}

	got, err := f.store.Verify(context.Background(), rec.Token)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}
