package services

import (
	"context"
	"log/slog"

	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/gorm"
)

// Scope limits which transactions and offers a caller can see.
// A restricted scope with an empty AgentID matches nothing.
type Scope struct {
	Restricted bool
	AgentID    string
}

// Unrestricted is the scope of admins and coordinators
var Unrestricted = Scope{}

// AgentScope restricts results to one agent's records
func AgentScope(agentID string) Scope {
	return Scope{Restricted: true, AgentID: agentID}
}

// Allows reports whether a record owned by agentID is visible
func (s Scope) Allows(agentID *string) bool {
	if !s.Restricted {
		return true
	}
	return s.AgentID != "" && agentID != nil && *agentID == s.AgentID
}

// apply adds the agent predicate to a query on a table with an agent_id column
func (s Scope) apply(query *gorm.DB) *gorm.DB {
	if !s.Restricted {
		return query
	}
	return query.Where("agent_id = ?", s.AgentID)
}

// changeOwnerKeys maps agent-owned tables to their primary key column
var changeOwnerKeys = map[string]string{
	models.Transaction{}.TableName():  "transaction_id",
	models.OfferRequest{}.TableName(): "offer_id",
	models.Vendor{}.TableName():       "vendor_id",
}

// EventVisible reports whether a subscriber in scope may see event.
// Restricted scopes see their own profile and rows their agent owns. Deleted rows can no longer be
// attributed, so their delete events are withheld.
func (s *AgentService) EventVisible(ctx context.Context, scope Scope, event models.ChangeEvent) bool {
	if !scope.Restricted {
		return true
	}
	if scope.AgentID == "" {
		return false
	}
	if event.Table == (models.AgentProfile{}).TableName() {
		return event.ID == scope.AgentID
	}
	key, ok := changeOwnerKeys[event.Table]
	if !ok {
		return false
	}
	var n int64
	err := s.db.WithContext(ctx).Table(event.Table).
		Where(key+" = ? AND agent_id = ?", event.ID, scope.AgentID).
		Count(&n).Error
	if err != nil {
		slog.Warn("Failed to check change event visibility", "table", event.Table, "id", event.ID, "error", err)
		return false
	}
	return n > 0
}
