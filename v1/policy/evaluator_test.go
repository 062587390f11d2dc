package policy

import (
	"context"
	"testing"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(context.Background())
	require.NoError(t, err)
	return e
}

func TestEvaluate(t *testing.T) {
	e := newEvaluator(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      Input
		allow   bool
		matched bool
	}{
		{"admin deletes agent", Input{Method: "DELETE", Path: "/api/v1/agents/agt_1", Roles: []string{"admin"}}, true, true},
		{"coordinator cannot delete agent", Input{Method: "DELETE", Path: "/api/v1/agents/agt_1", Roles: []string{"coordinator"}}, false, true},
		{"agent reads transactions", Input{Method: "GET", Path: "/api/v1/transactions", Roles: []string{"agent"}}, true, true},
		{"agent cannot reassign", Input{Method: "POST", Path: "/api/v1/transactions/reassign", Roles: []string{"agent"}}, false, true},
		{"agent cannot see performance", Input{Method: "GET", Path: "/api/v1/agents/performance", Roles: []string{"agent"}}, false, true},
		{"coordinator sees performance", Input{Method: "GET", Path: "/api/v1/agents/performance", Roles: []string{"coordinator"}}, true, true},
		{"wildcard is one segment", Input{Method: "PATCH", Path: "/api/v1/transactions/txn_1/status", Roles: []string{"agent"}}, true, true},
		{"wizard step update", Input{Method: "PUT", Path: "/api/v1/wizards/wiz_1/steps/property", Roles: []string{"agent"}}, true, true},
		{"no roles", Input{Method: "GET", Path: "/api/v1/transactions"}, false, true},
		{"unmapped fail closed", Input{Method: "GET", Path: "/api/v1/secret", Roles: []string{"admin"}, Mode: "fail_closed"}, false, false},
		{"unmapped fail open admin", Input{Method: "GET", Path: "/api/v1/secret", Roles: []string{"admin"}, Mode: "fail_open_admin"}, true, false},
		{"unmapped fail open non-admin", Input{Method: "GET", Path: "/api/v1/secret", Roles: []string{"agent"}, Mode: "fail_open_admin"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Evaluate(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.matched, d.Matched)
		})
	}
}

func TestEvaluate_ReportsRequiredPermissions(t *testing.T) {
	e := newEvaluator(t)
	d, err := e.Evaluate(context.Background(), Input{Method: "GET", Path: "/api/v1/agents/performance", Roles: []string{"agent"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"agent:read", "transaction:read:all"}, d.Required)
}

func TestNewEvaluatorWithData_CustomTables(t *testing.T) {
	e, err := NewEvaluatorWithData(context.Background(),
		map[models.Role][]models.Permission{"admin": {"x:read"}},
		[]models.EndpointPermission{{Method: "GET", Path: "/x/*", Permission: "x:read"}},
	)
	require.NoError(t, err)

	d, err := e.Evaluate(context.Background(), Input{Method: "GET", Path: "/x/1", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.True(t, d.Allow)
}
