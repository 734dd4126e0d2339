package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/panel-auth/internal/auth/repository"
	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
	userdomain "github.com/AlibekovAA/panel-auth/internal/user/domain"
)

const testPassword = "secret123"

func TestAuthService_LoginSuccess(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "Admin@Panel.Local", testPassword, "admin")

	result, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "admin@panel.local",
		Password: testPassword,
		Device:   laptop,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.Len(t, result.RefreshToken, 64)
	assert.Equal(t, TokenTypeBearer, result.TokenType)
	assert.Equal(t, testAccessTTL, result.ExpiresIn)
	assert.Equal(t, testRenewalTTL, result.RefreshExpiresIn)
	assert.Equal(t, authdomain.RoleAdmin, result.Role)
	assert.Equal(t, "Test User", result.Name)
	assert.Equal(t, string(user.ID), result.SubjectID)

	claims, err := f.svc.Authenticate(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(user.ID), claims.Subject)
	assert.Equal(t, authdomain.RoleAdmin, claims.Role)
	assert.Equal(t, "U01", claims.OrgUnit)
	assert.Equal(t, []string{"north"}, claims.Regions)
}

func TestAuthService_LoginFailures(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "user@panel.local", testPassword, "ADJUNTO")

	tests := []struct {
		name    string
		input   LoginInput
		prepare func()
		wantErr error
	}{
		{
			name:    "invalid email",
			input:   LoginInput{Email: "not-an-email", Password: testPassword},
			wantErr: ErrValidation,
		},
		{
			name:    "short password",
			input:   LoginInput{Email: "user@panel.local", Password: "123"},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown user",
			input:   LoginInput{Email: "ghost@panel.local", Password: testPassword},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "wrong password",
			input:   LoginInput{Email: "user@panel.local", Password: "wrong-pass"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "inactive user",
			input:   LoginInput{Email: "user@panel.local", Password: testPassword},
			prepare: func() { f.users.setActive(user.ID, false) },
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepare != nil {
				tt.prepare()
			}
			_, err := f.svc.Login(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_Refresh(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "user@panel.local", testPassword, "DIRETOR")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword, Device: laptop})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	require.NoError(t, err)

	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)
	assert.Equal(t, authdomain.RoleDiretor, refreshed.Role)

	_, err = f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.svc.Refresh(ctx, refreshed.RefreshToken, authdomain.DeviceInfo{})
	assert.NoError(t, err)
}

func TestAuthService_RefreshExpired(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "user@panel.local", testPassword, "DIRETOR")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword})
	require.NoError(t, err)

	f.clock.Advance(testRenewalTTL + time.Minute)
	_, err = f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RefreshInactiveSubject(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "user@panel.local", testPassword, "DIRETOR")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword})
	require.NoError(t, err)

	f.users.setActive(user.ID, false)
	_, err = f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrSubjectInactive)

	live, err := f.store.RevokeAllForSubject(ctx, string(user.ID))
	require.NoError(t, err)
	assert.Zero(t, live, "the rotated chain must be closed for an inactive user")
}

func TestAuthService_RefreshUserLookupUnavailable(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "user@panel.local", testPassword, "DIRETOR")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword})
	require.NoError(t, err)

	f.users.FindByIDFunc = func(context.Context, userdomain.ID) (userdomain.User, error) {
		return userdomain.User{}, errors.New("connection refused")
	}
	_, err = f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	de, ok := commonerrors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, 503, de.HTTPStatus())
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "user@panel.local", testPassword, "ADMIN")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword})
	require.NoError(t, err)

	result, err := f.svc.Logout(ctx, login.AccessToken, login.RefreshToken)
	require.NoError(t, err)
	assert.True(t, result.Revoked)

	_, err = f.svc.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	blacklisted, err := f.svc.IsClaimTokenBlacklisted(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	_, err = f.svc.Refresh(ctx, login.RefreshToken, authdomain.DeviceInfo{})
	assert.ErrorIs(t, err, ErrTokenNotFound)

	result, err = f.svc.Logout(ctx, login.AccessToken, login.RefreshToken)
	require.NoError(t, err)
	assert.False(t, result.Revoked)
}

func TestAuthService_LogoutAll(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "user@panel.local", testPassword, "ADMIN")
	ctx := context.Background()

	var sessions []AuthResult
	for i := 0; i < 3; i++ {
		s, err := f.svc.Login(ctx, LoginInput{Email: "user@panel.local", Password: testPassword})
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	result, err := f.svc.LogoutAll(ctx, sessions[0].AccessToken, string(user.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RevokedCount)

	for _, s := range sessions {
		_, err := f.svc.Refresh(ctx, s.RefreshToken, authdomain.DeviceInfo{})
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}

	_, err = f.svc.Authenticate(ctx, sessions[0].AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestAuthService_BlacklistExpiresWithToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.issuer.SignClaimToken(sampleClaims())
	require.NoError(t, err)
	require.NoError(t, f.svc.BlacklistClaimToken(ctx, token))

	f.clock.Advance(testAccessTTL + time.Second)
	purged, err := f.cache.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_BlacklistUnreadableToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.BlacklistClaimToken(ctx, "opaque-garbage"))
	blacklisted, err := f.svc.IsClaimTokenBlacklisted(ctx, "opaque-garbage")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	require.NoError(t, f.svc.BlacklistClaimToken(ctx, ""))
}

func TestAuthService_CreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "New@Panel.Local", testPassword, "gerente de projeto")
	assert.Equal(t, "new@panel.local", user.Email)
	assert.Equal(t, string(authdomain.RoleGerenteProjeto), user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, testPassword, user.PasswordHash)

	_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "new@panel.local", Name: "Dup", Password: testPassword, Role: "ADMIN"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.CreateUser(ctx, CreateUserInput{Email: "x@panel.local", Name: "X", Password: testPassword, Role: "OWNER"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Profile(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "user@panel.local", testPassword, "ADMIN")

	got, err := f.svc.Profile(context.Background(), string(user.ID))
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = f.svc.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSubjectInactive)
}

func TestIsStoreFailure(t *testing.T) {
	assert.False(t, IsStoreFailure(context.Canceled))
	assert.False(t, IsStoreFailure(fmt.Errorf("failed to find active renewal token: %w", context.Canceled)))
	assert.False(t, IsStoreFailure(authrepo.ErrRenewalTokenNotFound))
	assert.False(t, IsStoreFailure(ErrExpiredToken))
	assert.True(t, IsStoreFailure(context.DeadlineExceeded))
	assert.True(t, IsStoreFailure(errors.New("connection refused")))
}
