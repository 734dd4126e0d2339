package service

import (
	"context"
	"errors"
	"strings"
	"time"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	"github.com/AlibekovAA/panel-auth/internal/auth/revocation"
	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/common/resilience"
	userdomain "github.com/AlibekovAA/panel-auth/internal/user/domain"
	userrepo "github.com/AlibekovAA/panel-auth/internal/user/repository"
)

const TokenTypeBearer = "Bearer"

// AuthService coordinates the credential lifecycle: login, refresh,
// logout and request authentication.
type AuthService struct {
	users       userrepo.Repository
	issuer      *TokenIssuer
	store       *RenewalTokenStore
	revoked     revocation.Cache
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	breaker     *resilience.CircuitBreaker
	clock       clock.Clock
	log         *logger.Logger
}

func NewAuthService(
	users userrepo.Repository,
	issuer *TokenIssuer,
	store *RenewalTokenStore,
	revoked revocation.Cache,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	breaker *resilience.CircuitBreaker,
	clock clock.Clock,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		issuer:      issuer,
		store:       store,
		revoked:     revoked,
		hasher:      hasher,
		idGenerator: idGenerator,
		breaker:     breaker,
		clock:       clock,
		log:         log,
	}
}

type LoginInput struct {
	Email    string
	Password string
	Device   authdomain.DeviceInfo
}

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     string
	OrgUnit  string
	Regions  []string
}

type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
	RefreshExpiresAt time.Time
	SubjectID        string
	Role             authdomain.Role
	Name             string
}

type LogoutResult struct {
	Revoked      bool
	RevokedCount int64
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	s.log.WithFields(ctx, logger.Fields{
		"email":  email,
		"action": "login_attempt",
	}).Info("login attempt")

	if err := validateLogin(input); err != nil {
		incrementLoginAttempt("invalid")
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "login_validation_failed",
		}).Warnf("login validation failed: %v", err)
		return AuthResult{}, err
	}

	user, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			incrementLoginAttempt("failure")
			s.log.WithFields(ctx, logger.Fields{
				"email":  email,
				"action": "login_user_not_found",
			}).Warn("login failed: not found")
			return AuthResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		return AuthResult{}, err
	}

	if !user.Active {
		incrementLoginAttempt("failure")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_user_inactive",
		}).Warn("login failed: user inactive")
		return AuthResult{}, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		incrementLoginAttempt("failure")
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_invalid_password",
		}).Warn("login failed: invalid password")
		return AuthResult{}, ErrInvalidCredentials
	}

	result, err := s.issueSession(ctx, user, input.Device)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		return AuthResult{}, err
	}

	incrementLoginAttempt("success")
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")

	return result, nil
}

// Refresh exchanges a renewal token for a new claim token and a new renewal
// token. The presented token cannot be used again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, device authdomain.DeviceInfo) (AuthResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"action": "refresh_token_attempt",
	}).Info("refresh token attempt")

	next, err := s.store.Rotate(ctx, refreshToken, "", device)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_rejected",
		}).Warnf("refresh token rejected: %v", err)
		return AuthResult{}, err
	}

	user, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByID(ctx, userdomain.ID(next.SubjectID))
	})
	if err != nil && !errors.Is(err, userrepo.ErrUserNotFound) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": next.SubjectID,
			"action":  "refresh_token_user_lookup_failed",
		}).Errorf("refresh token failed: user lookup error: %v", err)
		return AuthResult{}, err
	}
	if err != nil || !user.Active {
		if _, revokeErr := s.store.Revoke(ctx, next.Token); revokeErr != nil {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": next.SubjectID,
				"action":  "refresh_token_revoke_inactive_failed",
			}).Errorf("failed to revoke renewal token of inactive user: %v", revokeErr)
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": next.SubjectID,
			"action":  "refresh_token_subject_inactive",
		}).Warn("refresh token failed: user inactive or missing")
		return AuthResult{}, ErrSubjectInactive
	}

	claims, err := claimsFor(user)
	if err != nil {
		return AuthResult{}, err
	}

	accessToken, err := s.issuer.SignClaimToken(claims)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": next.SubjectID,
			"action":  "refresh_token_sign_failed",
		}).Errorf("refresh token failed to sign claim token: %v", err)
		return AuthResult{}, newInternalError("TOKEN_SIGN_FAILED", "failed to sign claim token", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": next.SubjectID,
		"action":  "refresh_token_success",
	}).Info("refresh token success")

	return s.result(user, accessToken, next), nil
}

// Logout revokes the presented renewal token and blacklists the claim token
// used to call it.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) (LogoutResult, error) {
	if err := s.BlacklistClaimToken(ctx, accessToken); err != nil {
		return LogoutResult{}, err
	}

	revoked, err := s.store.Revoke(ctx, refreshToken)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "logout_revoke_failed",
		}).Errorf("logout failed to revoke renewal token: %v", err)
		return LogoutResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"revoked": revoked,
		"action":  "logout_success",
	}).Info("logout success")

	return LogoutResult{Revoked: revoked}, nil
}

func (s *AuthService) LogoutAll(ctx context.Context, accessToken, subjectID string) (LogoutResult, error) {
	count, err := s.store.RevokeAllForSubject(ctx, subjectID)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": subjectID,
			"action":  "logout_all_failed",
		}).Errorf("logout all failed: %v", err)
		return LogoutResult{}, err
	}

	if err := s.BlacklistClaimToken(ctx, accessToken); err != nil {
		return LogoutResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": subjectID,
		"count":   count,
		"action":  "logout_all_success",
	}).Info("logout all success")

	return LogoutResult{Revoked: count > 0, RevokedCount: count}, nil
}

func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (authdomain.Claims, error) {
	claims, err := s.issuer.VerifyClaimToken(ctx, accessToken)
	if err != nil {
		incrementClaimTokenVerification(verificationResult(err))
		return authdomain.Claims{}, err
	}
	incrementClaimTokenVerification("valid")
	return claims, nil
}

// BlacklistClaimToken keeps token revoked until its own exp, falling back to
// a full access token lifetime when exp cannot be read.
func (s *AuthService) BlacklistClaimToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	expiresAt, ok := s.issuer.ExpiryOf(accessToken)
	if !ok {
		expiresAt = s.clock.Now().Add(s.issuer.AccessTokenTTL())
	}

	if err := s.revoked.Add(ctx, accessToken, expiresAt); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "claim_token_blacklist_failed",
		}).Errorf("failed to blacklist claim token: %v", err)
		return ErrStoreUnavailable.WithCause(err)
	}

	incrementClaimTokensBlacklisted()
	return nil
}

func (s *AuthService) IsClaimTokenBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	revoked, err := s.revoked.IsRevoked(ctx, accessToken)
	if err != nil {
		return false, ErrStoreUnavailable.WithCause(err)
	}
	return revoked, nil
}

func (s *AuthService) Profile(ctx context.Context, subjectID string) (userdomain.User, error) {
	user, err := s.findUser(ctx, func(ctx context.Context) (userdomain.User, error) {
		return s.users.FindByID(ctx, userdomain.ID(subjectID))
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return userdomain.User{}, ErrSubjectInactive
		}
		return userdomain.User{}, err
	}
	return user, nil
}

func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (userdomain.User, error) {
	if err := validateCreateUser(input); err != nil {
		return userdomain.User{}, err
	}

	role, _ := authdomain.ParseRole(input.Role)

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return userdomain.User{}, newInternalError("PASSWORD_HASH_FAILED", "failed to hash password", err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return userdomain.User{}, newInternalError("ID_GENERATION_FAILED", "failed to generate id", err)
	}

	now := s.clock.Now()
	user := userdomain.User{
		ID:           userdomain.ID(id),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         string(role),
		OrgUnit:      input.OrgUnit,
		Regions:      input.Regions,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			return userdomain.User{}, ErrEmailTaken
		}
		return userdomain.User{}, ErrStoreUnavailable.WithCause(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": id,
		"role":    user.Role,
		"action":  "user_created",
	}).Info("user created")
	return user, nil
}

func (s *AuthService) findUser(ctx context.Context, find func(context.Context) (userdomain.User, error)) (userdomain.User, error) {
	var user userdomain.User
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = find(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return userdomain.User{}, err
		}
		return userdomain.User{}, ErrStoreUnavailable.WithCause(err)
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user userdomain.User, device authdomain.DeviceInfo) (AuthResult, error) {
	claims, err := claimsFor(user)
	if err != nil {
		return AuthResult{}, err
	}

	accessToken, err := s.issuer.SignClaimToken(claims)
	if err != nil {
		return AuthResult{}, newInternalError("TOKEN_SIGN_FAILED", "failed to sign claim token", err)
	}

	renewal, err := s.store.Issue(ctx, string(user.ID), device)
	if err != nil {
		return AuthResult{}, err
	}

	return s.result(user, accessToken, renewal), nil
}

func (s *AuthService) result(user userdomain.User, accessToken string, renewal authdomain.RenewalToken) AuthResult {
	return AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     renewal.Token,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        s.issuer.AccessTokenTTL(),
		RefreshExpiresIn: s.store.RenewalTokenTTL(),
		RefreshExpiresAt: renewal.ExpiresAt,
		SubjectID:        string(user.ID),
		Role:             authdomain.Role(user.Role),
		Name:             user.Name,
	}
}

func claimsFor(user userdomain.User) (authdomain.Claims, error) {
	role, ok := authdomain.ParseRole(user.Role)
	if !ok {
		return authdomain.Claims{}, ErrForbidden
	}
	return authdomain.Claims{
		Subject: string(user.ID),
		Role:    role,
		OrgUnit: user.OrgUnit,
		Regions: user.Regions,
	}, nil
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, ErrRevokedToken):
		return "revoked"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrWrongTokenKind):
		return "wrong_kind"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "malformed"
	}
}
