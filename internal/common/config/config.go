package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	RevocationBackendMemory = "memory"
	RevocationBackendRedis  = "redis"

	// Only accepted when APP_ENV=development.
	developmentJWTSecret = "panel-auth-development-secret-do-not-use"
)

type AuthConfig struct {
	AppEnv   string `validate:"required"`
	HTTPPort string `validate:"required,numeric"`

	StoreDriver string `validate:"oneof=postgres sqlite"`
	DatabaseURL string `validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `validate:"required_if=StoreDriver sqlite"`

	JWTSecret           string        `validate:"required,min=32"`
	UsingDevSecret      bool          `validate:"-"`
	AccessTokenTTL      time.Duration `validate:"gt=0"`
	RenewalTokenTTLDays int           `validate:"min=1"`

	RevocationBackend      string `validate:"oneof=memory redis"`
	RedisURL               string `validate:"required_if=RevocationBackend redis"`
	RevocationCacheMaxSize int    `validate:"min=1"`

	StoreTimeout    time.Duration `validate:"gt=0"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	CleanupInterval time.Duration `validate:"gt=0"`

	CircuitBreakerThreshold int           `validate:"min=1"`
	CircuitBreakerReset     time.Duration `validate:"gt=0"`

	RateLimitWindow time.Duration `validate:"gt=0"`
	RateLimitMax    int           `validate:"min=1"`

	// Peers allowed to set X-Forwarded-For and X-Real-IP. Empty trusts none.
	TrustedProxies []netip.Prefix

	LogDir   string
	LogLevel string `validate:"oneof=DEBUG INFO WARNING WARN ERROR CRITICAL"`
}

func (c AuthConfig) RenewalTokenTTL() time.Duration {
	return time.Duration(c.RenewalTokenTTLDays) * 24 * time.Hour
}

func (c AuthConfig) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadAuthConfig reads the environment, overlaid on the YAML file named by
// CONFIG_FILE when present. Environment values win.
func LoadAuthConfig() (AuthConfig, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return AuthConfig{}, err
	}
	return load(src)
}

func load(src *source) (AuthConfig, error) {
	appEnv := strings.ToLower(src.get("APP_ENV", EnvProduction))

	jwtSecret, usingDevSecret, err := resolveJWTSecret(src, appEnv)
	if err != nil {
		return AuthConfig{}, err
	}

	accessTTL, err := ParseTTL(src.get("JWT_EXPIRES_IN", ""), constants.DefaultAccessTokenTTL)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("%w: JWT_EXPIRES_IN: %v", commonerrors.ErrInvalidConfig, err)
	}

	storeDriver := strings.ToLower(src.get("STORE_DRIVER", StoreDriverPostgres))
	databaseURL := src.get("DATABASE_URL", "")
	if storeDriver == StoreDriverPostgres && databaseURL == "" {
		return AuthConfig{}, fmt.Errorf("%w: DATABASE_URL", commonerrors.ErrMissingRequiredEnv)
	}

	cfg := AuthConfig{
		AppEnv:                  appEnv,
		HTTPPort:                src.get("AUTH_HTTP_PORT", constants.DefaultAuthHTTPPort),
		StoreDriver:             storeDriver,
		DatabaseURL:             databaseURL,
		SQLitePath:              src.get("SQLITE_PATH", constants.DefaultSQLitePath),
		JWTSecret:               jwtSecret,
		UsingDevSecret:          usingDevSecret,
		AccessTokenTTL:          accessTTL,
		RenewalTokenTTLDays:     src.getInt("JWT_REFRESH_EXPIRES_DAYS", constants.DefaultRenewalTokenTTLDays),
		RevocationBackend:       strings.ToLower(src.get("REVOCATION_BACKEND", RevocationBackendMemory)),
		RedisURL:                src.get("REDIS_URL", ""),
		RevocationCacheMaxSize:  src.getInt("REVOCATION_CACHE_MAX_SIZE", constants.DefaultRevocationCacheMaxSize),
		StoreTimeout:            src.getDuration("STORE_TIMEOUT", constants.DefaultStoreTimeout),
		RequestTimeout:          src.getDuration("AUTH_REQUEST_TIMEOUT", constants.DefaultAuthRequestTimeout),
		CleanupInterval:         time.Duration(src.getInt("CLEANUP_EXPIRED_TOKENS_INTERVAL_HOURS", constants.DefaultCleanupIntervalHours)) * time.Hour,
		CircuitBreakerThreshold: src.getInt("CIRCUIT_BREAKER_THRESHOLD", constants.DefaultCircuitBreakerThreshold),
		CircuitBreakerReset:     src.getDuration("CIRCUIT_BREAKER_RESET", constants.DefaultCircuitBreakerReset),
		RateLimitWindow:         time.Duration(src.getInt("RATE_LIMIT_WINDOW_MS", int(constants.DefaultRateLimitWindow/time.Millisecond))) * time.Millisecond,
		RateLimitMax:            src.getInt("RATE_LIMIT_MAX", constants.DefaultRateLimitMax),
		LogDir:                  src.get("LOG_DIR", ""),
		LogLevel:                strings.ToUpper(src.get("LOG_LEVEL", "INFO")),
	}

	cfg.TrustedProxies, err = ParseTrustedProxies(src.get("TRUSTED_PROXIES", ""))
	if err != nil {
		src.errs = append(src.errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}

	if len(src.errs) > 0 {
		return AuthConfig{}, fmt.Errorf("%w: %v", commonerrors.ErrInvalidConfig, errors.Join(src.errs...))
	}

	if err := validate.Struct(cfg); err != nil {
		return AuthConfig{}, fmt.Errorf("%w: %v", commonerrors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

func resolveJWTSecret(src *source, appEnv string) (string, bool, error) {
	secret, ok := src.lookup("JWT_SECRET")
	if !ok || secret == "" {
		if appEnv == EnvDevelopment {
			return developmentJWTSecret, true, nil
		}
		return "", false, fmt.Errorf("%w: JWT_SECRET", commonerrors.ErrMissingRequiredEnv)
	}
	if err := validateJWTSecret(secret); err != nil {
		return "", false, err
	}
	return secret, false, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", commonerrors.ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

// ParseTTL accepts a Go duration ("15m", "1h"), a day count ("1d") or a raw
// number of seconds ("900"). An empty value yields fallback.
func ParseTTL(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("ttl must be positive, got %q", value)
		}
		return time.Duration(secs) * time.Second, nil
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive, got %q", value)
	}
	return d, nil
}

// ParseTrustedProxies reads a comma-separated list of addresses and CIDR
// ranges.
func ParseTrustedProxies(value string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// source records malformed values in errs instead of failing on the first.
type source struct {
	file map[string]string
	errs []error
}

func newSource(path string) (*source, error) {
	if path == "" {
		return &source{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: config file: %v", commonerrors.ErrInvalidConfig, err)
	}

	file := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return &source{file: file}, nil
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := s.file[key]
	return v, ok
}

func (s *source) get(key, fallback string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func (s *source) getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (s *source) getInt(key string, fallback int) int {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return i
}
