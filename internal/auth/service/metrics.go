package service

import (
	"github.com/AlibekovAA/panel-auth/internal/observability/metrics"
)

func incrementClaimTokensIssued() {
	metrics.ClaimTokensIssued.Inc()
}

func incrementClaimTokenVerification(result string) {
	metrics.ClaimTokenVerificationsTotal.WithLabelValues(result).Inc()
}

func incrementClaimTokensBlacklisted() {
	metrics.ClaimTokensBlacklisted.Inc()
}

func incrementRenewalTokensIssued() {
	metrics.RenewalTokensIssued.Inc()
}

func incrementRenewalTokensRotated() {
	metrics.RenewalTokensRotated.Inc()
}

func incrementRenewalTokensRevoked(n int64) {
	metrics.RenewalTokensRevoked.Add(float64(n))
}

func incrementRenewalTokensExpired() {
	metrics.RenewalTokensExpired.Inc()
}

func incrementRenewalTokensReuseDetected() {
	metrics.RenewalTokensReuseDetected.Inc()
}

func incrementRenewalTokensCleanupDeleted(n int64) {
	metrics.RenewalTokensCleanupDeleted.Add(float64(n))
}

func incrementLoginAttempt(result string) {
	metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func incrementStoreOperation(operation, result string) {
	metrics.StoreOperationsTotal.WithLabelValues(operation, result).Inc()
}
