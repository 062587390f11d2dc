package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/policy"
)

// PolicyEvaluator decides whether roles may call an endpoint
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in policy.Input) (*policy.Decision, error)
}

// AuthorizationConfig configures the authorization middleware behavior
type AuthorizationConfig struct {
	// Mode defines the behavior when no explicit permission is defined for an endpoint
	Mode models.AuthorizationMode
}

// AuthorizationMiddleware provides role-based access control
type AuthorizationMiddleware struct {
	config    AuthorizationConfig
	evaluator PolicyEvaluator
}

// NewAuthorizationMiddleware creates an authorization middleware backed by evaluator.
// Unknown modes fall back to fail_closed.
func NewAuthorizationMiddleware(evaluator PolicyEvaluator, config AuthorizationConfig) *AuthorizationMiddleware {
	switch config.Mode {
	case models.AuthorizationModeFailClosed, models.AuthorizationModeFailOpenAdmin:
	default:
		slog.Warn("Invalid authorization mode, defaulting to fail-closed", "mode", config.Mode)
		config.Mode = models.AuthorizationModeFailClosed
	}
	return &AuthorizationMiddleware{config: config, evaluator: evaluator}
}

// AuthorizeRequest returns a middleware function that checks user permissions for endpoints
func (a *AuthorizationMiddleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		user, err := GetUserFromRequest(r)
		if err != nil {
			slog.Warn("Authorization failed: user not authenticated", "path", r.URL.Path, "method", r.Method)
			utils.RespondWithCodedError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		decision, err := a.evaluator.Evaluate(r.Context(), policy.Input{
			Method: r.Method,
			Path:   r.URL.Path,
			Roles:  user.RoleNames(),
			Mode:   string(a.config.Mode),
		})
		if err != nil {
			slog.Error("Authorization policy evaluation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithCodedError(w, http.StatusForbidden, "FORBIDDEN", "Access denied")
			return
		}

		if !decision.Allow {
			if !decision.Matched {
				slog.Warn("Access denied to undefined endpoint",
					"userID", user.UserID,
					"mode", a.config.Mode,
					"path", r.URL.Path,
					"method", r.Method)
				utils.RespondWithCodedError(w, http.StatusForbidden, "FORBIDDEN", "Endpoint access not explicitly permitted")
				return
			}
			slog.Warn("Access denied: insufficient permissions",
				"userID", user.UserID,
				"roles", user.Roles,
				"required", decision.Required,
				"path", r.URL.Path,
				"method", r.Method)
			utils.RespondWithCodedError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
