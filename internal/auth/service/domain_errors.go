package service

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
)

var (
	ErrMalformedToken = commonerrors.NewDomainError(
		"MALFORMED_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is malformed",
	)

	ErrInvalidSignature = commonerrors.NewDomainError(
		"INVALID_SIGNATURE",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token signature is invalid",
	)

	ErrExpiredToken = commonerrors.NewDomainError(
		"TOKEN_EXPIRED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token expired",
	)

	ErrWrongTokenKind = commonerrors.NewDomainError(
		"WRONG_TOKEN_KIND",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is not an access token",
	)

	ErrRevokedToken = commonerrors.NewDomainError(
		"TOKEN_REVOKED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token has been revoked",
	)

	ErrTokenNotFound = commonerrors.NewDomainError(
		"TOKEN_NOT_FOUND",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"renewal token is invalid",
	)

	ErrStoreUnavailable = commonerrors.NewDomainError(
		"STORE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"credential store temporarily unavailable",
	)

	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid email or password",
	)

	ErrSubjectInactive = commonerrors.NewDomainError(
		"SUBJECT_INACTIVE",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"user is inactive or no longer exists",
	)

	ErrForbidden = commonerrors.NewDomainError(
		"FORBIDDEN",
		commonerrors.CategoryForbidden,
		http.StatusForbidden,
		"insufficient role",
	)

	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_FAILED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"validation failed",
	)

	ErrEmailTaken = commonerrors.NewDomainError(
		"EMAIL_TAKEN",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"email already registered",
	)
)
