package service

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	authrepo "github.com/AlibekovAA/panel-auth/internal/auth/repository"
	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/common/resilience"
)

type RenewalTokenStore struct {
	repo            authrepo.RenewalTokenRepository
	tokens          commoncrypto.TokenGenerator
	idGenerator     commoncrypto.IDGenerator
	clock           clock.Clock
	renewalTokenTTL time.Duration
	breaker         *resilience.CircuitBreaker
	log             *logger.Logger
}

func NewRenewalTokenStore(
	repo authrepo.RenewalTokenRepository,
	tokens commoncrypto.TokenGenerator,
	idGenerator commoncrypto.IDGenerator,
	renewalTokenTTL time.Duration,
	clock clock.Clock,
	breaker *resilience.CircuitBreaker,
	log *logger.Logger,
) *RenewalTokenStore {
	return &RenewalTokenStore{
		repo:            repo,
		tokens:          tokens,
		idGenerator:     idGenerator,
		clock:           clock,
		renewalTokenTTL: renewalTokenTTL,
		breaker:         breaker,
		log:             log,
	}
}

func (s *RenewalTokenStore) RenewalTokenTTL() time.Duration {
	return s.renewalTokenTTL
}

func (s *RenewalTokenStore) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := s.breaker.Call(ctx, fn)
	if err != nil {
		mapped := storeError(err)
		if errors.Is(mapped, ErrStoreUnavailable) {
			incrementStoreOperation(operation, "unavailable")
			s.log.WithFields(ctx, logger.Fields{
				"operation": operation,
				"action":    "renewal_store_unavailable",
			}).Errorf("renewal token store call failed: %v", err)
		} else {
			incrementStoreOperation(operation, "rejected")
		}
		return mapped
	}
	incrementStoreOperation(operation, "ok")
	return nil
}

func (s *RenewalTokenStore) newRecord(subjectID string, device authdomain.DeviceInfo, now time.Time) (authdomain.RenewalToken, error) {
	raw, err := s.tokens.NewToken()
	if err != nil {
		return authdomain.RenewalToken{}, err
	}
	id, err := s.idGenerator.NewID()
	if err != nil {
		return authdomain.RenewalToken{}, err
	}
	return authdomain.RenewalToken{
		ID:        id,
		Token:     raw,
		TokenHash: commoncrypto.HashToken(raw),
		SubjectID: subjectID,
		ExpiresAt: now.Add(s.renewalTokenTTL),
		Device:    device,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Issue creates a renewal record for subjectID. The returned record is the
// only place the raw token is ever exposed.
func (s *RenewalTokenStore) Issue(ctx context.Context, subjectID string, device authdomain.DeviceInfo) (authdomain.RenewalToken, error) {
	if subjectID == "" {
		return authdomain.RenewalToken{}, ErrValidation
	}

	rec, err := s.newRecord(subjectID, device, s.clock.Now())
	if err != nil {
		return authdomain.RenewalToken{}, newInternalError("TOKEN_GENERATION_FAILED", "failed to generate renewal token", err)
	}

	if err := s.call(ctx, "issue", func(ctx context.Context) error {
		return s.repo.Create(ctx, rec)
	}); err != nil {
		return authdomain.RenewalToken{}, err
	}

	incrementRenewalTokensIssued()
	s.log.WithFields(ctx, logger.Fields{
		"user_id":  subjectID,
		"token_id": rec.ID,
		"action":   "renewal_token_issued",
	}).Debug("renewal token issued")
	return rec, nil
}

func (s *RenewalTokenStore) Verify(ctx context.Context, token string) (authdomain.RenewalToken, error) {
	if token == "" {
		return authdomain.RenewalToken{}, ErrTokenNotFound
	}

	var rec authdomain.RenewalToken
	if err := s.call(ctx, "verify", func(ctx context.Context) error {
		var err error
		rec, err = s.repo.FindActiveByHash(ctx, commoncrypto.HashToken(token))
		return err
	}); err != nil {
		return authdomain.RenewalToken{}, err
	}

	now := s.clock.Now()
	if authdomain.IsRenewalTokenExpired(rec, now) {
		incrementRenewalTokensExpired()
		return authdomain.RenewalToken{}, ErrExpiredToken
	}

	if err := s.call(ctx, "touch", func(ctx context.Context) error {
		return s.repo.TouchLastUsed(ctx, rec.ID, now)
	}); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": rec.SubjectID,
			"action":  "renewal_token_touch_failed",
		}).Warnf("failed to record renewal token use: %v", err)
	} else {
		rec.LastUsedAt = &now
		rec.UpdatedAt = now
	}

	return rec, nil
}

// Rotate consumes token and returns its successor. When subjectID is set the
// token must belong to it. An empty device keeps the predecessor's device.
func (s *RenewalTokenStore) Rotate(ctx context.Context, token string, subjectID string, device authdomain.DeviceInfo) (authdomain.RenewalToken, error) {
	if token == "" {
		return authdomain.RenewalToken{}, ErrTokenNotFound
	}

	now := s.clock.Now()
	hash := commoncrypto.HashToken(token)

	next, err := s.newRecord(subjectID, device, now)
	if err != nil {
		return authdomain.RenewalToken{}, newInternalError("TOKEN_GENERATION_FAILED", "failed to generate renewal token", err)
	}

	successor := func(consumed authdomain.RenewalToken) (authdomain.RenewalToken, error) {
		if authdomain.IsRenewalTokenExpired(consumed, now) {
			return authdomain.RenewalToken{}, ErrExpiredToken
		}
		if subjectID != "" && consumed.SubjectID != subjectID {
			return authdomain.RenewalToken{}, ErrTokenNotFound
		}
		candidate := next
		candidate.SubjectID = consumed.SubjectID
		if device.IsEmpty() {
			candidate.Device = consumed.Device
		}
		return candidate, nil
	}

	var rotated authdomain.RenewalToken
	err = s.call(ctx, "rotate", func(ctx context.Context) error {
		var err error
		rotated, err = s.repo.Rotate(ctx, hash, now, successor)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			incrementRenewalTokensExpired()
		case errors.Is(err, ErrTokenNotFound):
			s.detectReuse(ctx, hash)
		}
		return authdomain.RenewalToken{}, err
	}

	incrementRenewalTokensRotated()
	s.log.WithFields(ctx, logger.Fields{
		"user_id":  rotated.SubjectID,
		"token_id": rotated.ID,
		"action":   "renewal_token_rotated",
	}).Info("renewal token rotated")
	return rotated, nil
}

// detectReuse logs presentations of a token that an earlier rotation or
// revocation already consumed.
func (s *RenewalTokenStore) detectReuse(ctx context.Context, hash string) {
	var rec authdomain.RenewalToken
	err := s.call(ctx, "find", func(ctx context.Context) error {
		var err error
		rec, err = s.repo.FindByHash(ctx, hash)
		return err
	})
	if err != nil || !rec.Revoked {
		return
	}

	incrementRenewalTokensReuseDetected()
	s.log.WithFields(ctx, logger.Fields{
		"user_id":  rec.SubjectID,
		"token_id": rec.ID,
		"action":   "renewal_token_reuse_detected",
	}).Warn("revoked renewal token presented again")
}

// Revoke reports whether a live record was flipped. Revoking an unknown or
// already revoked token returns false without error.
func (s *RenewalTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var revoked bool
	if err := s.call(ctx, "revoke", func(ctx context.Context) error {
		var err error
		revoked, err = s.repo.Revoke(ctx, commoncrypto.HashToken(token), s.clock.Now())
		return err
	}); err != nil {
		return false, err
	}

	if revoked {
		incrementRenewalTokensRevoked(1)
	}
	return revoked, nil
}

func (s *RenewalTokenStore) RevokeAllForSubject(ctx context.Context, subjectID string) (int64, error) {
	if subjectID == "" {
		return 0, ErrValidation
	}

	var count int64
	if err := s.call(ctx, "revoke_all", func(ctx context.Context) error {
		var err error
		count, err = s.repo.RevokeAllForSubject(ctx, subjectID, s.clock.Now())
		return err
	}); err != nil {
		return 0, err
	}

	incrementRenewalTokensRevoked(count)
	s.log.WithFields(ctx, logger.Fields{
		"user_id": subjectID,
		"count":   count,
		"action":  "renewal_tokens_revoked_all",
	}).Info("revoked all renewal tokens for subject")
	return count, nil
}

// CleanupExpired deletes every record that is revoked or expired.
func (s *RenewalTokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	var deleted int64
	if err := s.call(ctx, "cleanup", func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.DeleteInvalid(ctx, s.clock.Now())
		return err
	}); err != nil {
		return 0, err
	}

	incrementRenewalTokensCleanupDeleted(deleted)
	return deleted, nil
}
