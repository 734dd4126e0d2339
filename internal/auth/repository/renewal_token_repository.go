package repository

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
)

// SuccessorFunc receives the record consumed by a rotation and returns the
// record to insert in its place. A non-nil error rolls the rotation back.
type SuccessorFunc func(consumed authdomain.RenewalToken) (authdomain.RenewalToken, error)

type RenewalTokenRepository interface {
	Create(ctx context.Context, token authdomain.RenewalToken) error
	// FindActiveByHash ignores revoked records. Expiry is left to the caller.
	FindActiveByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error)
	FindByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	// Rotate marks the record with hash revoked only if it is not revoked yet
	// and inserts the successor, both in one transaction.
	Rotate(ctx context.Context, hash string, at time.Time, successor SuccessorFunc) (authdomain.RenewalToken, error)
	Revoke(ctx context.Context, hash string, at time.Time) (bool, error)
	RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int64, error)
	// DeleteInvalid removes records that are revoked or expire at or before now.
	DeleteInvalid(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrRenewalTokenNotFound = errors.New("renewal token not found")
	ErrDuplicateTokenHash   = errors.New("renewal token hash already exists")
)
