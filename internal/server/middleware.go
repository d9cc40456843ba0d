package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"costbreakdown/internal/common"
)

// withRequestID tags every request with an id that rides the context into
// the pipeline logs and comes back to the caller as X-Request-ID.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.New().String()
		ctx := common.WithRequestID(r.Context(), rid)
		w.Header().Set("X-Request-ID", rid)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Info("http.request",
			"req_id", rid,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
