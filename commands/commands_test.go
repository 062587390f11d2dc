package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v1handlers "github.com/concierge-tc/portal-backend/v1/handlers"
	v1middleware "github.com/concierge-tc/portal-backend/v1/middleware"
	v1models "github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/policy"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func bearer(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := &v1models.UserClaims{
		Roles: v1models.FlexibleStringSlice(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestNewRouter_MiddlewareChain(t *testing.T) {
	db := services.SetupSQLiteTestDB(t)
	evaluator, err := policy.NewEvaluator(context.Background())
	require.NoError(t, err)

	router := newRouter(routerConfig{
		DB:        db,
		Handler:   v1handlers.NewV1Handler(newDependencies(db, services.NewLocalChangeFeed(), nil)),
		JWT:       v1middleware.JWTAuthConfig{Secret: testSecret},
		Evaluator: evaluator,
		AuthMode:  v1models.AuthorizationModeFailClosed,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"api requires a token", http.MethodGet, "/api/v1/transactions", "", http.StatusUnauthorized},
		{"coordinator lists transactions", http.MethodGet, "/api/v1/transactions", bearer(t, "coord-1", "coordinator"), http.StatusOK},
		{"agent cannot delete agents", http.MethodDelete, "/api/v1/agents/agt_1", bearer(t, "agent-1", "agent"), http.StatusForbidden},
		{"unlisted endpoint is denied", http.MethodGet, "/api/v1/unknown", bearer(t, "admin-1", "admin"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestNewDependencies_WithoutRedis(t *testing.T) {
	db := services.SetupSQLiteTestDB(t)
	deps := newDependencies(db, services.NewLocalChangeFeed(), nil)

	assert.IsType(t, services.LogNotifier{}, deps.Notifier)
	assert.False(t, deps.Auditor.IsEnabled())

	// drafts survive between calls through the in-memory store
	user := &v1models.AuthenticatedUser{UserID: "coord-1", Roles: []v1models.Role{v1models.RoleCoordinator}}
	session, err := deps.Wizards.Start(context.Background(), v1models.WizardKindTransaction, user)
	require.NoError(t, err)
	loaded, err := deps.Wizards.Get(context.Background(), session.SessionID, user)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, loaded.SessionID)
}

func TestMigrateAndImportAgents(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "portal.db")
	roster := filepath.Join(dir, "agents.csv")
	require.NoError(t, os.WriteFile(roster, []byte("first_name,last_name,email\nJane,Roe,jane@example.com\nJohn,Doe,not-an-email\n"), 0o600))

	root := NewRootCommand()
	root.SetArgs([]string{"migrate", "--sqlite", dbPath})
	require.NoError(t, root.Execute())

	var out bytes.Buffer
	root = NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"import-agents", "--file", roster, "--sqlite", dbPath})
	require.NoError(t, root.Execute())

	var resp v1models.ImportAgentsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Failed)

	// a second run skips the existing email
	out.Reset()
	root = NewRootCommand()
	root.SetOut(&out)
	root.SetIn(strings.NewReader("first_name,last_name,email\nJane,Roe,jane@example.com\n"))
	root.SetArgs([]string{"import-agents", "--file", "-", "--sqlite", dbPath})
	require.NoError(t, root.Execute())
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 0, resp.Created)
	assert.Equal(t, 1, resp.Skipped)
}

func TestImportAgents_RequiresFile(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"import-agents"})
	assert.Error(t, root.Execute())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
