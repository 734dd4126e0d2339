package service

import (
	"context"
	"errors"
	"net/http"

	authrepo "github.com/AlibekovAA/panel-auth/internal/auth/repository"
	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
	userrepo "github.com/AlibekovAA/panel-auth/internal/user/repository"
)

// IsStoreFailure reports whether err should count against the circuit
// breaker. Lookups that find nothing, uniqueness conflicts, cancelled calls
// and domain rejections do not.
func IsStoreFailure(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, authrepo.ErrRenewalTokenNotFound),
		errors.Is(err, authrepo.ErrDuplicateTokenHash),
		errors.Is(err, userrepo.ErrUserNotFound),
		errors.Is(err, userrepo.ErrEmailAlreadyExists):
		return false
	}
	return !commonerrors.IsDomainError(err)
}

// storeError maps a failed store call to the error surfaced to callers.
// Domain errors pass through, a missing record becomes ErrTokenNotFound and
// anything else, including timeouts and an open circuit, becomes
// ErrStoreUnavailable.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, authrepo.ErrRenewalTokenNotFound) {
		return ErrTokenNotFound
	}
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return ErrStoreUnavailable.WithCause(err)
	}
	if de, ok := commonerrors.AsDomainError(err); ok {
		return de
	}
	return ErrStoreUnavailable.WithCause(err)
}

func newInternalError(code, message string, cause error) commonerrors.DomainError {
	err := commonerrors.NewDomainError(
		code,
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		message,
	)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
