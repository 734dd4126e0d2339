package http

import (
	"context"
	"net/http"

	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

type ReadinessCheck func(ctx context.Context) error

func HealthHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}
		log.Debug("health check request")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyHandler reports 503 while any check fails.
func ReadyHandler(log *logger.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}

		failed := make(map[string]any)
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"check":  name,
					"action": "readiness_check_failed",
				}).Warnf("readiness check failed: %v", err)
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			WriteErrorEnvelope(w, http.StatusServiceUnavailable, CodeNotReady, "service not ready", failed, TraceIDFromContext(r.Context()))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
