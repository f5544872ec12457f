package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
	"github.com/automind-ia/automind-saas/platform/go/requesttrace"
)

// RequestTrace tags the context with call-scoped AuditInfo so handlers and
// services can log who drove a state transition. Callers self-identify via
// the X-Invoked-By header; anything else is treated as anonymous.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		audit := requesttrace.FromCaller(r.Header.Get("X-Invoked-By"), requestID)

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			logger = logger.With(zap.String("actor_kind", string(audit.ActorKind)))
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
