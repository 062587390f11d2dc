package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthConfig contains configuration for JWT authentication
type JWTAuthConfig struct {
	Secret           string
	ExpectedIssuer   string
	ExpectedAudience string
	// Leeway tolerates clock skew on exp/nbf
	Leeway time.Duration
}

// NewJWTAuthConfig reads AUTH_JWT_* from the environment
func NewJWTAuthConfig() JWTAuthConfig {
	return JWTAuthConfig{
		Secret:           utils.GetEnvOrDefault("AUTH_JWT_SECRET", ""),
		ExpectedIssuer:   utils.GetEnvOrDefault("AUTH_JWT_ISSUER", ""),
		ExpectedAudience: utils.GetEnvOrDefault("AUTH_JWT_AUDIENCE", ""),
		Leeway:           utils.GetEnvDurationOrDefault("AUTH_JWT_LEEWAY", 30*time.Second),
	}
}

// Validate checks that the configuration can verify tokens
func (c JWTAuthConfig) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if len(c.Secret) < 32 {
		return errors.New("AUTH_JWT_SECRET must be at least 32 bytes")
	}
	return nil
}

// JWTAuthMiddleware provides JWT authentication functionality
type JWTAuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.ExpectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(config.ExpectedIssuer))
	}
	if config.ExpectedAudience != "" {
		opts = append(opts, jwt.WithAudience(config.ExpectedAudience))
	}
	return &JWTAuthMiddleware{
		secret: []byte(config.Secret),
		parser: jwt.NewParser(opts...),
	}
}

// AuthenticateJWT returns a middleware function that validates JWT tokens
func (j *JWTAuthMiddleware) AuthenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractBearerToken(r)
		if err != nil {
			slog.Warn("Failed to extract bearer token", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithCodedError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing authorization header")
			return
		}

		user, err := j.validateToken(tokenString)
		if err != nil {
			slog.Warn("Token validation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			if errors.Is(err, jwt.ErrTokenExpired) {
				utils.RespondWithCodedError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
				return
			}
			utils.RespondWithCodedError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token")
			return
		}

		slog.Debug("User authenticated", "userID", user.UserID, "roles", user.Roles, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(models.WithAuthenticatedUser(r.Context(), user)))
	})
}

func (j *JWTAuthMiddleware) validateToken(tokenString string) (*models.AuthenticatedUser, error) {
	claims := &models.UserClaims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim is missing")
	}
	return models.NewAuthenticatedUser(claims), nil
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		// EventSource cannot set headers, so the stream accepts the token as a query parameter
		if strings.HasSuffix(r.URL.Path, "/stream") {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, nil
			}
		}
		return "", errors.New("authorization header is missing")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}

// shouldSkipAuth determines if authentication should be skipped for this path
func shouldSkipAuth(path string) bool {
	skipPaths := []string{
		"/health",
		"/metrics",
	}
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// GetUserFromRequest extracts the authenticated user from request context
func GetUserFromRequest(r *http.Request) (*models.AuthenticatedUser, error) {
	user, ok := models.GetAuthenticatedUser(r.Context())
	if !ok {
		return nil, errors.New("user not authenticated")
	}
	return user, nil
}
