package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/concierge-tc/portal-backend/shared/utils"
)

// CORSConfig configures the CORS middleware
type CORSConfig struct {
	// AllowedOrigins lists exact origins; empty or "*" allows any origin
	AllowedOrigins []string
	MaxAge         int
}

// NewCORSConfig reads CORS_ALLOWED_ORIGINS and CORS_MAX_AGE
func NewCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: utils.SplitAndTrim(utils.GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "")),
		MaxAge:         utils.GetEnvIntOrDefault("CORS_MAX_AGE", 86400),
	}
}

func (c CORSConfig) allowOrigin(origin string) string {
	if len(c.AllowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// CORSMiddleware sets CORS headers and answers preflight requests
func CORSMiddleware(config CORSConfig) func(http.Handler) http.Handler {
	maxAge := strconv.Itoa(config.MaxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := config.allowOrigin(r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if origin != "*" {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-Id, Accept, Origin")
			w.Header().Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
