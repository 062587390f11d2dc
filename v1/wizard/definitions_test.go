package wizard

import (
	"testing"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeTransactionWizard(t *testing.T) *Sequencer {
	t.Helper()
	s, err := New(TransactionSteps()...)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStepData(StepProperty, map[string]interface{}{
		"street_address": "12 Oak Ave", "city": "Austin", "state": "TX", "zip_code": "78701",
	}))
	require.NoError(t, s.Next())
	require.NoError(t, s.UpdateStepData(StepService, map[string]interface{}{
		"service_tier": "elite_listing", "purchase_price": 450000.0, "closing_date": "2026-11-30",
	}))
	require.NoError(t, s.Next())
	require.NoError(t, s.UpdateStepData(StepClients, map[string]interface{}{
		"primary_first_name": "Ana", "primary_last_name": "Diaz", "primary_email": "ana@example.com",
		"secondary_clients": []interface{}{
			map[string]interface{}{"first_name": "Sam", "last_name": "Diaz", "role": "seller"},
		},
	}))
	require.NoError(t, s.Next())
	return s
}

func TestTransactionWizard_HappyPath(t *testing.T) {
	s := completeTransactionWizard(t)
	assert.Equal(t, StepReview, s.CurrentStep().ID)
	assert.Nil(t, s.FirstInvalid())

	draft := DecodeTransaction(s.Data())
	assert.Equal(t, "12 Oak Ave", draft.StreetAddress)
	assert.Equal(t, models.TierEliteListing, draft.ServiceTier)
	require.NotNil(t, draft.PurchasePrice)
	assert.Equal(t, 450000.0, *draft.PurchasePrice)
	require.NotNil(t, draft.ClosingDate)
	assert.Equal(t, time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC), *draft.ClosingDate)
	assert.Equal(t, models.ClientRoleSeller, draft.Primary.Role)
	assert.Equal(t, models.PreferenceEmail, draft.Primary.Preference)
	require.Len(t, draft.Secondary, 1)
	assert.Equal(t, "Sam", draft.Secondary[0].FirstName)
}

func TestTransactionWizard_FieldValidation(t *testing.T) {
	s, err := New(TransactionSteps()...)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStepData(StepProperty, map[string]interface{}{
		"street_address": "12 Oak Ave", "city": "Austin", "state": "TX", "zip_code": "7870",
	}))
	assert.Equal(t, map[string]string{"zip_code": "must be a 5 digit zip code"}, s.ValidateStep(0))

	require.NoError(t, s.UpdateStepData(StepService, map[string]interface{}{
		"service_tier": "platinum", "purchase_price": -1.0, "closing_date": "11/30/2026",
	}))
	fields := s.ValidateStep(1)
	assert.Contains(t, fields, "service_tier")
	assert.Equal(t, "must be greater than zero", fields["purchase_price"])
	assert.Contains(t, fields, "closing_date")

	require.NoError(t, s.UpdateStepData(StepClients, map[string]interface{}{
		"primary_first_name": "Ana", "primary_last_name": "Diaz", "primary_email": "ana@example.com",
		"secondary_clients": []interface{}{map[string]interface{}{"first_name": "Sam"}},
	}))
	assert.Contains(t, s.ValidateStep(2), "secondary_clients")
}

func TestOfferWizard_DecodeOffer(t *testing.T) {
	s, err := New(OfferSteps()...)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStepData(StepBuyer, map[string]interface{}{
		"buyer_names": []interface{}{"Ana Diaz", " Sam Diaz "}, "buyer_email": "ana@example.com",
	}))
	require.NoError(t, s.UpdateStepData(StepOfferProperty, map[string]interface{}{"property_address": "12 Oak Ave"}))
	require.NoError(t, s.UpdateStepData(StepFinancial, map[string]interface{}{
		"purchase_price": "450,000", "loan_type": "conventional", "earnest_money": 0.0,
	}))
	require.NoError(t, s.UpdateStepData(StepContingencies, map[string]interface{}{
		"closing_date": "2026-12-15", "inspection_contingency": true, "inspection_period_days": 10.0,
	}))
	assert.Nil(t, s.FirstInvalid())

	draft := DecodeOffer(s.Data())
	assert.Equal(t, []string{"Ana Diaz", "Sam Diaz"}, draft.BuyerNames)
	assert.Equal(t, 450000.0, draft.PurchasePrice)
	assert.Equal(t, 0.0, draft.EarnestMoney)
	assert.True(t, draft.InspectionContingency)
	require.NotNil(t, draft.InspectionPeriodDays)
	assert.Equal(t, 10, *draft.InspectionPeriodDays)
	assert.Nil(t, draft.TransactionID)
}

func TestOfferWizard_RejectsFractionalInspectionDays(t *testing.T) {
	s, err := New(OfferSteps()...)
	require.NoError(t, err)
	require.NoError(t, s.UpdateStepData(StepContingencies, map[string]interface{}{
		"closing_date": "2026-12-15", "inspection_period_days": 2.5,
	}))
	assert.Equal(t, "must be a whole number", s.ValidateStep(3)["inspection_period_days"])
}

func TestOfferWizard_InspectionDaysRange(t *testing.T) {
	s, err := New(OfferSteps()...)
	require.NoError(t, err)
	for _, days := range []interface{}{-1.0, 366.0, 1e19, "NaN"} {
		require.NoError(t, s.UpdateStepData(StepContingencies, map[string]interface{}{
			"closing_date": "2026-12-15", "inspection_period_days": days,
		}))
		assert.NotEmpty(t, s.ValidateStep(3)["inspection_period_days"], "days %v", days)
	}
	require.NoError(t, s.UpdateStepData(StepContingencies, map[string]interface{}{"inspection_period_days": 365.0}))
	assert.Empty(t, s.ValidateStep(3)["inspection_period_days"])

	// decoding never overflows into a bogus day count
	draft := DecodeOffer(map[string]map[string]interface{}{
		StepContingencies: {"inspection_period_days": 1e19},
	})
	assert.Nil(t, draft.InspectionPeriodDays)
}

func TestPurchasePriceBounds(t *testing.T) {
	assert.NoError(t, PositiveNumber(1e12))
	assert.EqualError(t, PositiveNumber(1e13), "must be at most 1,000,000,000,000")
	assert.EqualError(t, PositiveNumber("Inf"), "must be a number")
	assert.EqualError(t, NonNegativeNumber("9e99"), "must be at most 1,000,000,000,000")

	s := completeTransactionWizard(t)
	require.NoError(t, s.UpdateStepData(StepService, map[string]interface{}{"purchase_price": 5e18}))
	assert.Equal(t, "must be at most 1,000,000,000,000", s.ValidateStep(1)["purchase_price"])
}

func TestStepsFor(t *testing.T) {
	steps, err := StepsFor(models.WizardKindOffer)
	require.NoError(t, err)
	assert.Len(t, steps, 5)

	_, err = StepsFor("mortgage")
	assert.Error(t, err)
}
