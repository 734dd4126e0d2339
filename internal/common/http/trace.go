package http

import (
	"context"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/AlibekovAA/panel-auth/internal/common/constants"
)

const traceIDHeader = "X-Trace-ID"

// TraceIDMiddleware reuses an inbound X-Trace-ID or mints one, and stores it
// under constants.TraceIDKey so the logger picks it up.
func TraceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" || len(traceID) > 64 {
			traceID = generateTraceID()
		}

		w.Header().Set(traceIDHeader, traceID)

		ctx := context.WithValue(r.Context(), constants.TraceIDKey, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(constants.TraceIDKey).(string)
	return traceID
}

func generateTraceID() string {
	id, err := gonanoid.New(constants.TraceIDLength)
	if err != nil {
		return "unknown"
	}
	return id
}
