package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	"github.com/AlibekovAA/panel-auth/internal/auth/revocation"
	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
)

type claimTokenClaims struct {
	Role    string   `json:"role"`
	OrgUnit string   `json:"org_unit,omitempty"`
	Regions []string `json:"regions,omitempty"`
	Kind    string   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 claim tokens.
type TokenIssuer struct {
	jwtSecret      []byte
	idGenerator    commoncrypto.IDGenerator
	clock          clock.Clock
	accessTokenTTL time.Duration
	revoked        revocation.Cache
	parser         *jwt.Parser
}

func NewTokenIssuer(
	jwtSecret string,
	idGenerator commoncrypto.IDGenerator,
	accessTokenTTL time.Duration,
	clock clock.Clock,
	revoked revocation.Cache,
) *TokenIssuer {
	if accessTokenTTL <= 0 {
		accessTokenTTL = constants.DefaultAccessTokenTTL
	}
	return &TokenIssuer{
		jwtSecret:      []byte(jwtSecret),
		idGenerator:    idGenerator,
		clock:          clock,
		accessTokenTTL: accessTokenTTL,
		revoked:        revoked,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
			jwt.WithExpirationRequired(),
		),
	}
}

func (ti *TokenIssuer) AccessTokenTTL() time.Duration {
	return ti.accessTokenTTL
}

// SignClaimToken stamps the kind, issue time, expiry and a fresh jti onto
// claims and signs them.
func (ti *TokenIssuer) SignClaimToken(claims authdomain.Claims) (string, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return "", err
	}

	now := ti.clock.Now()
	wire := claimTokenClaims{
		Role:    string(claims.Role),
		OrgUnit: claims.OrgUnit,
		Regions: claims.Regions,
		Kind:    constants.AccessTokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.accessTokenTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	tokenString, err := t.SignedString(ti.jwtSecret)
	if err != nil {
		return "", err
	}

	incrementClaimTokensIssued()
	return tokenString, nil
}

// VerifyClaimToken consults the revocation cache before looking at the
// token itself, so a revoked token reports ErrRevokedToken.
func (ti *TokenIssuer) VerifyClaimToken(ctx context.Context, tokenString string) (authdomain.Claims, error) {
	if tokenString == "" {
		return authdomain.Claims{}, ErrMalformedToken
	}

	if ti.revoked != nil {
		revoked, err := ti.revoked.IsRevoked(ctx, tokenString)
		if err != nil {
			return authdomain.Claims{}, ErrStoreUnavailable.WithCause(err)
		}
		if revoked {
			return authdomain.Claims{}, ErrRevokedToken
		}
	}

	var wire claimTokenClaims
	_, err := ti.parser.ParseWithClaims(tokenString, &wire, func(*jwt.Token) (any, error) {
		return ti.jwtSecret, nil
	})
	if err != nil {
		return authdomain.Claims{}, mapJWTError(err)
	}

	if wire.Kind != constants.AccessTokenKind {
		return authdomain.Claims{}, ErrWrongTokenKind
	}

	return toDomainClaims(wire), nil
}

// ExpiryOf reads exp without verifying the signature.
func (ti *TokenIssuer) ExpiryOf(tokenString string) (time.Time, bool) {
	var wire claimTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &wire); err != nil {
		return time.Time{}, false
	}
	if wire.ExpiresAt == nil {
		return time.Time{}, false
	}
	return wire.ExpiresAt.Time, true
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken.WithCause(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature.WithCause(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return ErrMalformedToken.WithCause(err)
	}
}

func toDomainClaims(wire claimTokenClaims) authdomain.Claims {
	claims := authdomain.Claims{
		Subject: wire.Subject,
		Role:    authdomain.Role(wire.Role),
		OrgUnit: wire.OrgUnit,
		Regions: wire.Regions,
		Kind:    wire.Kind,
		ID:      wire.ID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims
}
