package constants

import "time"

const (
	JWTSecretMinLength = 32
	RenewalTokenSize   = 32

	PasswordMinLength = 6
	PasswordMaxLength = 72

	AccessTokenKind = "access"

	DefaultAccessTokenTTL         = 15 * time.Minute
	DefaultRenewalTokenTTLDays    = 7
	DefaultRevocationCacheMaxSize = 10000
	DefaultStoreTimeout           = 3 * time.Second
	DefaultCleanupIntervalHours   = 24

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	SQLiteBusyTimeout = 5 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultAuthHTTPPort       = "8081"
	DefaultAuthRequestTimeout = 5 * time.Second
	DefaultSQLitePath         = "panel-auth.db"

	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultRateLimitWindow    = 15 * time.Minute
	DefaultRateLimitMax       = 500
	RateLimitLoginPerSecond   = 5.0 / 60
	RateLimitLoginBurst       = 5
	RateLimitRefreshPerSecond = 10.0 / 60
	RateLimitRefreshBurst     = 10
	RateLimitCleanupPeriod    = 5 * time.Minute

	RedisRevocationKeyPrefix = "panel-auth:revoked:"

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
	DefaultLogDir    = "/var/log/panel-auth"

	TraceIDLength = 21
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
