package models

// AuthorizationMode defines how the system behaves when no explicit permission is defined for an endpoint
type AuthorizationMode string

const (
	// AuthorizationModeFailClosed - Deny all access to undefined endpoints (most secure)
	AuthorizationModeFailClosed AuthorizationMode = "fail_closed"

	// AuthorizationModeFailOpenAdmin - Allow only admin users, deny others
	AuthorizationModeFailOpenAdmin AuthorizationMode = "fail_open_admin"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin       Role = "admin"       // Full access, including agent deletion
	RoleCoordinator Role = "coordinator" // Runs transactions for every agent
	RoleAgent       Role = "agent"       // Own transactions, offers and vendors
)

// Permission represents specific permissions
type Permission string

const (
	// Transaction permissions
	PermissionCreateTransaction      Permission = "transaction:create"
	PermissionReadTransaction        Permission = "transaction:read"
	PermissionReadAllTransactions    Permission = "transaction:read:all"
	PermissionUpdateTransaction      Permission = "transaction:update"
	PermissionBulkUpdateTransactions Permission = "transaction:bulk_update"
	PermissionReassignTransactions   Permission = "transaction:reassign"

	// Agent permissions
	PermissionCreateAgent   Permission = "agent:create"
	PermissionReadAgent     Permission = "agent:read"
	PermissionReadAllAgents Permission = "agent:read:all"
	PermissionUpdateAgent   Permission = "agent:update"
	PermissionDeleteAgent   Permission = "agent:delete"
	PermissionImportAgents  Permission = "agent:import"

	// Offer permissions
	PermissionCreateOffer Permission = "offer:create"
	PermissionReadOffer   Permission = "offer:read"
	PermissionUpdateOffer Permission = "offer:update"

	// Vendor permissions
	PermissionCreateVendor Permission = "vendor:create"
	PermissionReadVendor   Permission = "vendor:read"
	PermissionUpdateVendor Permission = "vendor:update"
	PermissionDeleteVendor Permission = "vendor:delete"

	// Wizard permissions
	PermissionUseWizard Permission = "wizard:use"
)

// RolePermissions defines what permissions each role has
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionCreateTransaction, PermissionReadTransaction, PermissionReadAllTransactions,
		PermissionUpdateTransaction, PermissionBulkUpdateTransactions, PermissionReassignTransactions,
		PermissionCreateAgent, PermissionReadAgent, PermissionReadAllAgents, PermissionUpdateAgent,
		PermissionDeleteAgent, PermissionImportAgents,
		PermissionCreateOffer, PermissionReadOffer, PermissionUpdateOffer,
		PermissionCreateVendor, PermissionReadVendor, PermissionUpdateVendor, PermissionDeleteVendor,
		PermissionUseWizard,
	},
	RoleCoordinator: {
		PermissionCreateTransaction, PermissionReadTransaction, PermissionReadAllTransactions,
		PermissionUpdateTransaction, PermissionBulkUpdateTransactions, PermissionReassignTransactions,
		PermissionCreateAgent, PermissionReadAgent, PermissionReadAllAgents, PermissionUpdateAgent,
		PermissionCreateOffer, PermissionReadOffer, PermissionUpdateOffer,
		PermissionReadVendor,
		PermissionUseWizard,
	},
	RoleAgent: {
		PermissionCreateTransaction, PermissionReadTransaction, PermissionUpdateTransaction,
		PermissionReadAgent,
		PermissionCreateOffer, PermissionReadOffer, PermissionUpdateOffer,
		PermissionCreateVendor, PermissionReadVendor, PermissionUpdateVendor, PermissionDeleteVendor,
		PermissionUseWizard,
	},
}

// EndpointPermission defines the required permission for each endpoint.
// "*" in Path matches exactly one path segment.
type EndpointPermission struct {
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	Permission Permission `json:"permission"`
}

// EndpointPermissions maps HTTP endpoints to required permissions
var EndpointPermissions = []EndpointPermission{
	// Wizard endpoints
	{"POST", "/api/v1/wizards/*", PermissionUseWizard},
	{"GET", "/api/v1/wizards/*", PermissionUseWizard},
	{"PUT", "/api/v1/wizards/*/steps/*", PermissionUseWizard},
	{"POST", "/api/v1/wizards/*/next", PermissionUseWizard},
	{"POST", "/api/v1/wizards/*/previous", PermissionUseWizard},
	{"POST", "/api/v1/wizards/*/submit", PermissionUseWizard},

	// Transaction endpoints
	{"GET", "/api/v1/transactions", PermissionReadTransaction},
	{"GET", "/api/v1/transactions/progress", PermissionReadTransaction},
	{"GET", "/api/v1/transactions/stream", PermissionReadTransaction},
	{"GET", "/api/v1/transactions/*", PermissionReadTransaction},
	{"PATCH", "/api/v1/transactions/*/status", PermissionUpdateTransaction},
	{"POST", "/api/v1/transactions/bulk-status", PermissionBulkUpdateTransactions},
	{"POST", "/api/v1/transactions/reassign", PermissionReassignTransactions},

	// Agent endpoints
	{"GET", "/api/v1/agents", PermissionReadAllAgents},
	{"POST", "/api/v1/agents", PermissionCreateAgent},
	{"GET", "/api/v1/agents/performance", PermissionReadAllTransactions},
	{"POST", "/api/v1/agents/import", PermissionImportAgents},
	{"POST", "/api/v1/agents/bulk-actions", PermissionUpdateAgent},
	{"GET", "/api/v1/agents/*", PermissionReadAgent},
	{"DELETE", "/api/v1/agents/*", PermissionDeleteAgent},
	{"PATCH", "/api/v1/agents/*/status", PermissionUpdateAgent},
	{"POST", "/api/v1/agents/*/setup-link", PermissionUpdateAgent},
	{"POST", "/api/v1/agents/*/complete-setup", PermissionUpdateAgent},
	{"GET", "/api/v1/agents/*/vendors", PermissionReadVendor},
	{"POST", "/api/v1/agents/*/vendors", PermissionCreateVendor},

	// Vendor endpoints
	{"PUT", "/api/v1/vendors/*", PermissionUpdateVendor},
	{"DELETE", "/api/v1/vendors/*", PermissionDeleteVendor},
	{"POST", "/api/v1/vendors/*/primary", PermissionUpdateVendor},

	// Offer endpoints
	{"GET", "/api/v1/offers", PermissionReadOffer},
	{"POST", "/api/v1/offers", PermissionCreateOffer},
	{"GET", "/api/v1/offers/*", PermissionReadOffer},
	{"PATCH", "/api/v1/offers/*/status", PermissionUpdateOffer},
}

// HasPermission checks if a role has a specific permission
func (r Role) HasPermission(permission Permission) bool {
	for _, p := range RolePermissions[r] {
		if p == permission {
			return true
		}
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	_, exists := RolePermissions[r]
	return exists
}
