package http

import (
	"net/http"

	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	"github.com/AlibekovAA/panel-auth/internal/common/httpmetrics"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	collector := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)

	return SecurityHeadersMiddleware(TraceIDMiddleware(recovery(maxRequestSize(collector.Wrap(handler)))))
}
