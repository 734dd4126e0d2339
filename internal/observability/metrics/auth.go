package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total number of auth requests",
		},
		[]string{"method", "path"},
	)

	AuthRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_requests_in_flight",
			Help: "Number of auth requests currently being processed",
		},
	)

	AuthRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_request_duration_seconds",
			Help:    "Duration of auth requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	ClaimTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_tokens_issued_total",
			Help: "Total number of claim tokens issued",
		},
	)

	ClaimTokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_token_verifications_total",
			Help: "Total number of claim token verifications by result",
		},
		[]string{"result"},
	)

	ClaimTokensBlacklisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_tokens_blacklisted_total",
			Help: "Total number of claim tokens added to the revocation cache",
		},
	)

	RenewalTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_issued_total",
			Help: "Total number of renewal tokens issued",
		},
	)

	RenewalTokensRotated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_rotated_total",
			Help: "Total number of renewal tokens consumed by rotation",
		},
	)

	RenewalTokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_revoked_total",
			Help: "Total number of renewal tokens revoked",
		},
	)

	RenewalTokensExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_expired_total",
			Help: "Total number of expired renewal tokens presented",
		},
	)

	RenewalTokensReuseDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_reuse_detected_total",
			Help: "Total number of rotations rejected because the token was already consumed",
		},
	)

	RenewalTokensCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_tokens_cleanup_deleted_total",
			Help: "Total number of expired or revoked renewal tokens deleted during cleanup",
		},
	)

	RevocationCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "revocation_cache_size",
			Help: "Number of entries held by the in-memory revocation cache",
		},
	)

	RevocationCachePurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "revocation_cache_purged_total",
			Help: "Total number of expired entries purged from the revocation cache",
		},
	)

	RevocationCacheForcedEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "revocation_cache_forced_evictions_total",
			Help: "Total number of unexpired entries evicted because the cache was full",
		},
	)
)
