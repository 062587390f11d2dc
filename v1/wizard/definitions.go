package wizard

import (
	"fmt"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// Step ids of the transaction wizard
const (
	StepProperty = "property"
	StepService  = "service"
	StepClients  = "clients"
	StepReview   = "review"
)

// Step ids of the offer wizard
const (
	StepBuyer         = "buyer"
	StepOfferProperty = "property"
	StepFinancial     = "financial"
	StepContingencies = "contingencies"
	StepOfferReview   = "review"
)

func tierNames() []string {
	names := make([]string, len(models.ServiceTiers))
	for i, t := range models.ServiceTiers {
		names[i] = string(t)
	}
	return names
}

// TransactionSteps returns the steps of the transaction creation wizard
func TransactionSteps() []Step {
	return []Step{
		{
			ID:       StepProperty,
			Title:    "Property Information",
			Required: []string{"street_address", "city", "state", "zip_code"},
			Validators: map[string]FieldValidator{
				"zip_code": ZipCode,
			},
		},
		{
			ID:       StepService,
			Title:    "Service Selection",
			Required: []string{"service_tier"},
			Validators: map[string]FieldValidator{
				"service_tier":   OneOf(tierNames()...),
				"purchase_price": PositiveNumber,
				"closing_date":   Date,
			},
		},
		{
			ID:       StepClients,
			Title:    "Client Information",
			Required: []string{"primary_first_name", "primary_last_name", "primary_email"},
			Validators: map[string]FieldValidator{
				"primary_email":      Email,
				"primary_role":       OneOf(string(models.ClientRoleBuyer), string(models.ClientRoleSeller)),
				"primary_preference": OneOf(string(models.PreferenceEmail), string(models.PreferencePhone), string(models.PreferenceText)),
				"secondary_clients":  ClientList,
			},
		},
		{
			ID:    StepReview,
			Title: "Review & Create",
		},
	}
}

// OfferSteps returns the steps of the offer drafting wizard
func OfferSteps() []Step {
	return []Step{
		{
			ID:       StepBuyer,
			Title:    "Buyer Information",
			Required: []string{"buyer_names", "buyer_email"},
			Validators: map[string]FieldValidator{
				"buyer_names": NameList,
				"buyer_email": Email,
			},
		},
		{
			ID:       StepOfferProperty,
			Title:    "Property Details",
			Required: []string{"property_address"},
		},
		{
			ID:       StepFinancial,
			Title:    "Financial Terms",
			Required: []string{"purchase_price", "loan_type", "earnest_money"},
			Validators: map[string]FieldValidator{
				"purchase_price": PositiveNumber,
				"earnest_money":  NonNegativeNumber,
				"down_payment":   NonNegativeNumber,
			},
		},
		{
			ID:       StepContingencies,
			Title:    "Contingencies & Timeline",
			Required: []string{"closing_date"},
			Validators: map[string]FieldValidator{
				"closing_date":           Date,
				"inspection_period_days": IntegerBetween(0, MaxInspectionPeriodDays),
				"financing_contingency":  Boolean,
				"inspection_contingency": Boolean,
				"appraisal_contingency":  Boolean,
			},
		},
		{
			ID:    StepOfferReview,
			Title: "Review & Submit",
		},
	}
}

// StepsFor returns the step definitions for a wizard kind
func StepsFor(kind models.WizardKind) ([]Step, error) {
	switch kind {
	case models.WizardKindTransaction:
		return TransactionSteps(), nil
	case models.WizardKindOffer:
		return OfferSteps(), nil
	}
	return nil, fmt.Errorf("unknown wizard kind %q", kind)
}
