package wizard

import (
	"strings"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// ClientDraft is one client collected by the transaction wizard
type ClientDraft struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Role       models.ClientRole
	Preference models.CommunicationPreference
}

// TransactionDraft is the typed result of a completed transaction wizard
type TransactionDraft struct {
	StreetAddress string
	City          string
	State         string
	ZipCode       string
	PropertyType  string
	ServiceTier   models.ServiceTier
	PurchasePrice *float64
	ClosingDate   *time.Time
	Primary       ClientDraft
	Secondary     []ClientDraft
	// SessionID is the wizard session the draft came from, empty for direct submissions
	SessionID string
}

// OfferDraft is the typed result of a completed offer wizard
type OfferDraft struct {
	BuyerNames            []string
	BuyerEmail            string
	BuyerPhone            string
	PropertyAddress       string
	TransactionID         *string
	PurchasePrice         float64
	LoanType              string
	EarnestMoney          float64
	DownPayment           *float64
	FinancingContingency  bool
	InspectionContingency bool
	AppraisalContingency  bool
	InspectionPeriodDays  *int
	ClosingDate           *time.Time
	Notes                 string
	SessionID             string
}

// DecodeTransaction converts validated wizard data into a TransactionDraft.
// The primary client's role defaults from the tier: listing tiers are sellers.
func DecodeTransaction(data map[string]map[string]interface{}) TransactionDraft {
	property := data[StepProperty]
	service := data[StepService]
	clients := data[StepClients]

	tier := models.ServiceTier(str(service, "service_tier"))
	defaultRole := models.ClientRoleBuyer
	if strings.HasSuffix(string(tier), "_listing") {
		defaultRole = models.ClientRoleSeller
	}

	draft := TransactionDraft{
		StreetAddress: str(property, "street_address"),
		City:          str(property, "city"),
		State:         str(property, "state"),
		ZipCode:       str(property, "zip_code"),
		PropertyType:  str(property, "property_type"),
		ServiceTier:   tier,
		PurchasePrice: optFloat(service, "purchase_price"),
		ClosingDate:   optDate(service, "closing_date"),
		Primary: ClientDraft{
			FirstName:  str(clients, "primary_first_name"),
			LastName:   str(clients, "primary_last_name"),
			Email:      str(clients, "primary_email"),
			Phone:      str(clients, "primary_phone"),
			Role:       roleOr(str(clients, "primary_role"), defaultRole),
			Preference: preferenceOr(str(clients, "primary_preference")),
		},
	}

	if items, ok := clients["secondary_clients"].([]interface{}); ok {
		for _, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			draft.Secondary = append(draft.Secondary, ClientDraft{
				FirstName:  str(obj, "first_name"),
				LastName:   str(obj, "last_name"),
				Email:      str(obj, "email"),
				Phone:      str(obj, "phone"),
				Role:       roleOr(str(obj, "role"), defaultRole),
				Preference: preferenceOr(str(obj, "communication_preference")),
			})
		}
	}
	return draft
}

// DecodeOffer converts validated wizard data into an OfferDraft
func DecodeOffer(data map[string]map[string]interface{}) OfferDraft {
	buyer := data[StepBuyer]
	property := data[StepOfferProperty]
	financial := data[StepFinancial]
	terms := data[StepContingencies]

	names, _ := ToStringList(buyer["buyer_names"])
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}

	draft := OfferDraft{
		BuyerNames:            cleaned,
		BuyerEmail:            str(buyer, "buyer_email"),
		BuyerPhone:            str(buyer, "buyer_phone"),
		PropertyAddress:       str(property, "property_address"),
		LoanType:              str(financial, "loan_type"),
		DownPayment:           optFloat(financial, "down_payment"),
		FinancingContingency:  boolean(terms, "financing_contingency"),
		InspectionContingency: boolean(terms, "inspection_contingency"),
		AppraisalContingency:  boolean(terms, "appraisal_contingency"),
		ClosingDate:           optDate(terms, "closing_date"),
		Notes:                 str(terms, "notes"),
	}
	if id := str(property, "transaction_id"); id != "" {
		draft.TransactionID = &id
	}
	if p := optFloat(financial, "purchase_price"); p != nil {
		draft.PurchasePrice = *p
	}
	if e := optFloat(financial, "earnest_money"); e != nil {
		draft.EarnestMoney = *e
	}
	if d := optFloat(terms, "inspection_period_days"); d != nil && *d >= 0 && *d <= MaxInspectionPeriodDays {
		days := int(*d)
		draft.InspectionPeriodDays = &days
	}
	return draft
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func boolean(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func optFloat(m map[string]interface{}, key string) *float64 {
	v, present := m[key]
	if !present || isEmpty(v) {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func optDate(m map[string]interface{}, key string) *time.Time {
	s := str(m, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func roleOr(s string, fallback models.ClientRole) models.ClientRole {
	if r := models.ClientRole(s); r.IsValid() {
		return r
	}
	return fallback
}

func preferenceOr(s string) models.CommunicationPreference {
	if p := models.CommunicationPreference(s); p.IsValid() {
		return p
	}
	return models.PreferenceEmail
}
