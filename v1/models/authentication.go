package models

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents the JWT claims for a user
type UserClaims struct {
	Email     string              `json:"email"`
	FirstName string              `json:"given_name"`
	LastName  string              `json:"family_name"`
	Roles     FlexibleStringSlice `json:"roles"`
	jwt.RegisteredClaims
}

// AuthenticatedUser represents the authenticated user context
type AuthenticatedUser struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Roles     []Role    `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HasRole checks if the user has a specific role
func (u *AuthenticatedUser) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the user has a specific permission based on their roles
func (u *AuthenticatedUser) HasPermission(permission Permission) bool {
	for _, role := range u.Roles {
		if role.HasPermission(permission) {
			return true
		}
	}
	return false
}

// IsAdmin checks if the user has admin role
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// IsAgentOnly reports whether every query must be scoped to the user's own agent profile
func (u *AuthenticatedUser) IsAgentOnly() bool {
	return !u.HasPermission(PermissionReadAllTransactions)
}

// RoleNames returns the roles as plain strings for policy input
func (u *AuthenticatedUser) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		names[i] = string(r)
	}
	return names
}

// NewAuthenticatedUser creates a new authenticated user from JWT claims.
// Unknown role strings are dropped; a token with no known role gets RoleAgent.
func NewAuthenticatedUser(claims *UserClaims) *AuthenticatedUser {
	var roles []Role
	for _, roleStr := range claims.Roles.ToStringSlice() {
		role := Role(roleStr)
		if role.IsValid() {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []Role{RoleAgent}
	}

	user := &AuthenticatedUser{
		UserID:    claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Roles:     roles,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user
}

type contextKey string

const (
	authenticatedUserKey contextKey = "authenticated_user"
	requestIDKey         contextKey = "request_id"
)

// WithAuthenticatedUser stores the user in ctx
func WithAuthenticatedUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, authenticatedUserKey, user)
}

// GetAuthenticatedUser retrieves the user placed in ctx by the JWT middleware
func GetAuthenticatedUser(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(authenticatedUserKey).(*AuthenticatedUser)
	return user, ok && user != nil
}

// WithRequestID stores the request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
