// Package policy evaluates role/permission authorization with an embedded OPA policy.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/open-policy-agent/opa/rego"
)

//go:embed authz.rego
var authzModule string

const decisionQuery = "data.portal.authz.decision"

// Input is the document the policy evaluates
type Input struct {
	Method string   `json:"method"`
	Path   string   `json:"path"`
	Roles  []string `json:"roles"`
	Mode   string   `json:"mode"`
}

// Decision is the policy result
type Decision struct {
	Allow    bool     `json:"allow"`
	Matched  bool     `json:"matched"`
	Required []string `json:"required"`
}

// Evaluator holds the prepared OPA query, ready for evaluation.
type Evaluator struct {
	preparedQuery rego.PreparedEvalQuery
}

// NewEvaluator compiles the policy together with the role and endpoint tables from models
func NewEvaluator(ctx context.Context) (*Evaluator, error) {
	return NewEvaluatorWithData(ctx, models.RolePermissions, models.EndpointPermissions)
}

// NewEvaluatorWithData compiles the policy with explicit tables
func NewEvaluatorWithData(ctx context.Context, roles map[models.Role][]models.Permission, endpoints []models.EndpointPermission) (*Evaluator, error) {
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal role permissions: %w", err)
	}
	endpointsJSON, err := json.Marshal(endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal endpoint permissions: %w", err)
	}

	// Tables are embedded as a data module in the same package as the policy
	dataModule := fmt.Sprintf(`
		package portal.authz

		role_permissions := %s

		endpoints := %s
		`, string(rolesJSON), string(endpointsJSON))

	r := rego.New(
		rego.Query(decisionQuery),
		rego.Module("authz.rego", authzModule),
		rego.Module("data.rego", dataModule),
	)

	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare OPA query: %w", err)
	}

	slog.Info("Authorization policy loaded", "roles", len(roles), "endpoints", len(endpoints))
	return &Evaluator{preparedQuery: pq}, nil
}

// Evaluate runs the policy for one request
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*Decision, error) {
	if in.Roles == nil {
		in.Roles = []string{}
	}

	results, err := e.preparedQuery.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("policy evaluation returned no decision")
	}

	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy result: %w", err)
	}
	var decision Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, fmt.Errorf("unexpected policy result %s: %w", string(raw), err)
	}
	sort.Strings(decision.Required)
	return &decision, nil
}
