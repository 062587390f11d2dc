package models

// ServiceTier is the package level purchased for a transaction
type ServiceTier string

const (
	TierCoreBuyer         ServiceTier = "core_buyer"
	TierCoreListing       ServiceTier = "core_listing"
	TierEliteBuyer        ServiceTier = "elite_buyer"
	TierEliteListing      ServiceTier = "elite_listing"
	TierWhiteGloveBuyer   ServiceTier = "white_glove_buyer"
	TierWhiteGloveListing ServiceTier = "white_glove_listing"
)

// ServiceTiers lists every tier in display order
var ServiceTiers = []ServiceTier{
	TierCoreBuyer, TierCoreListing,
	TierEliteBuyer, TierEliteListing,
	TierWhiteGloveBuyer, TierWhiteGloveListing,
}

// IsValid checks the tier against the known set
func (t ServiceTier) IsValid() bool {
	for _, known := range ServiceTiers {
		if t == known {
			return true
		}
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction
type TransactionStatus string

const (
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusActive        TransactionStatus = "active"
	TransactionStatusUnderContract TransactionStatus = "under_contract"
	TransactionStatusClosing       TransactionStatus = "closing"
	TransactionStatusCompleted     TransactionStatus = "completed"
	TransactionStatusCancelled     TransactionStatus = "cancelled"
)

// TransactionStatuses lists every status in lifecycle order
var TransactionStatuses = []TransactionStatus{
	TransactionStatusPending, TransactionStatusActive, TransactionStatusUnderContract,
	TransactionStatusClosing, TransactionStatusCompleted, TransactionStatusCancelled,
}

// IsValid checks the status against the known set
func (s TransactionStatus) IsValid() bool {
	for _, known := range TransactionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ClientRole is the part a client plays in a transaction
type ClientRole string

const (
	ClientRoleBuyer  ClientRole = "buyer"
	ClientRoleSeller ClientRole = "seller"
	ClientRoleAgent  ClientRole = "agent"
)

// IsValid checks the role against the known set
func (r ClientRole) IsValid() bool {
	return r == ClientRoleBuyer || r == ClientRoleSeller || r == ClientRoleAgent
}

// CommunicationPreference is how a client wants to be contacted
type CommunicationPreference string

const (
	PreferenceEmail CommunicationPreference = "email"
	PreferencePhone CommunicationPreference = "phone"
	PreferenceText  CommunicationPreference = "text"
)

// IsValid checks the preference against the known set
func (p CommunicationPreference) IsValid() bool {
	return p == PreferenceEmail || p == PreferencePhone || p == PreferenceText
}

// InvitationStatus tracks agent onboarding
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusSent      InvitationStatus = "sent"
	InvitationStatusCompleted InvitationStatus = "completed"
	InvitationStatusExpired   InvitationStatus = "expired"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// IsValid checks the status against the known set
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusSent, InvitationStatusCompleted,
		InvitationStatusExpired, InvitationStatusCancelled:
		return true
	}
	return false
}

// AccountStatus is toggled by the activate/deactivate bulk actions
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// SetupMethod records how an agent profile was created
type SetupMethod string

const (
	SetupMethodInvitation SetupMethod = "invitation"
	SetupMethodManual     SetupMethod = "manual"
	SetupMethodBulkImport SetupMethod = "bulk_import"
)

// OfferStatus is the lifecycle state of an offer request
type OfferStatus string

const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusSubmitted OfferStatus = "submitted"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// IsValid checks the status against the known set
func (s OfferStatus) IsValid() bool {
	switch s {
	case OfferStatusDraft, OfferStatusPending, OfferStatusSubmitted,
		OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed
func (s OfferStatus) IsTerminal() bool {
	return s == OfferStatusAccepted || s == OfferStatusRejected || s == OfferStatusWithdrawn
}

// VendorType groups vendors into per-agent lists
type VendorType string

const (
	VendorTypeLender       VendorType = "lender"
	VendorTypeTitle        VendorType = "title"
	VendorTypeInspector    VendorType = "inspector"
	VendorTypeInsurance    VendorType = "insurance"
	VendorTypeAppraiser    VendorType = "appraiser"
	VendorTypeAttorney     VendorType = "attorney"
	VendorTypeContractor   VendorType = "contractor"
	VendorTypePhotographer VendorType = "photographer"
)

// IsValid checks the type against the known set
func (t VendorType) IsValid() bool {
	switch t {
	case VendorTypeLender, VendorTypeTitle, VendorTypeInspector, VendorTypeInsurance,
		VendorTypeAppraiser, VendorTypeAttorney, VendorTypeContractor, VendorTypePhotographer:
		return true
	}
	return false
}

// AuditStatus represents the status of audit events
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// ResourceType represents different resource types for auditing
type ResourceType string

const (
	ResourceTypeTransactions ResourceType = "TRANSACTIONS"
	ResourceTypeAgents       ResourceType = "AGENTS"
	ResourceTypeOffers       ResourceType = "OFFERS"
	ResourceTypeVendors      ResourceType = "VENDORS"
	ResourceTypeWizards      ResourceType = "WIZARDS"
)

// Field length constraints
const (
	MaxNameLength  = 255
	MaxEmailLength = 320 // RFC 3696 specification
	MaxPhoneLength = 15  // E.164 format
	MaxNotesLength = 4000
)
