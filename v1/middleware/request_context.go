package middleware

import (
	"net/http"

	"github.com/concierge-tc/portal-backend/v1/models"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestContextMiddleware copies the chi request id into the request context and echoes it back.
// It must run after chimiddleware.RequestID.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())
		if requestID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(chimiddleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(models.WithRequestID(r.Context(), requestID)))
	})
}
