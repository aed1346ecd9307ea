package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformlogging "github.com/JSisques/saas-boilerplate-sub000/platform/go/logging"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo so services and repositories can stamp audit fields.
// The control plane sits behind the surrounding application, which may forward a
// caller identity in X-Actor-Id / X-Actor-Tenant-Id headers; requests without one
// are recorded as anonymous.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		var audit requesttrace.AuditInfo
		if actorID := r.Header.Get("X-Actor-Id"); actorID != "" {
			var tenantID *string
			if v := r.Header.Get("X-Actor-Tenant-Id"); v != "" {
				tenantID = &v
			}
			audit = requesttrace.ForUser(actorID, tenantID, requestID)
		} else {
			audit = requesttrace.Anonymous(requestID)
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger != nil {
			fields := []zap.Field{zap.String("actor_kind", string(audit.ActorKind))}
			if audit.UserID != nil && *audit.UserID != "" {
				fields = append(fields, zap.String("user_id", *audit.UserID))
			}
			logger = logger.With(fields...)
			ctx = platformlogging.WithLogger(ctx, logger)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
