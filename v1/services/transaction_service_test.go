package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/progress"
	"github.com/concierge-tc/portal-backend/v1/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedTransaction inserts a property, a transaction and its primary client
func seedTransaction(t *testing.T, db *gorm.DB, agentID *string, status models.TransactionStatus, price *float64) *models.Transaction {
	t.Helper()
	property := models.Property{
		PropertyID:    models.NewID(models.PrefixProperty),
		StreetAddress: "1 Main St",
		City:          "Austin",
		State:         "TX",
		ZipCode:       "78701",
	}
	require.NoError(t, db.Create(&property).Error)

	txn := models.Transaction{
		TransactionID: models.NewID(models.PrefixTransaction),
		PropertyID:    property.PropertyID,
		ServiceTier:   models.TierCoreBuyer,
		Status:        status,
		AgentID:       agentID,
		PurchasePrice: price,
	}
	require.NoError(t, db.Omit("Property", "Agent", "Clients").Create(&txn).Error)
	require.NoError(t, db.Create(&models.Client{
		ClientID:      models.NewID(models.PrefixClient),
		TransactionID: txn.TransactionID,
		FirstName:     "Pat",
		LastName:      "Buyer",
		Role:          models.ClientRoleBuyer,
		IsPrimary:     true,
	}).Error)
	return &txn
}

func sampleTransactionDraft() wizard.TransactionDraft {
	closing := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	return wizard.TransactionDraft{
		StreetAddress: "42 Elm St",
		City:          "Denver",
		State:         "CO",
		ZipCode:       "80202",
		ServiceTier:   models.TierWhiteGloveBuyer,
		PurchasePrice: floatPtr(450000),
		ClosingDate:   &closing,
		Primary: wizard.ClientDraft{
			FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com",
			Role: models.ClientRoleBuyer, Preference: models.PreferenceText,
		},
		Secondary: []wizard.ClientDraft{
			{FirstName: "Luis", LastName: "Lopez", Role: models.ClientRoleBuyer, Preference: models.PreferenceEmail},
		},
	}
}

func TestTransactionService_CreateFromWizard(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	feed := &recordingFeed{}
	service := NewTransactionService(db, feed)
	ctx := context.Background()

	txn, err := service.CreateFromWizard(ctx, nil, sampleTransactionDraft())
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, []string{txn.TransactionID}, feed.ids("transactions", models.ChangeInsert))

	loaded, err := service.GetTransaction(ctx, Unrestricted, txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "42 Elm St", loaded.Property.StreetAddress)
	require.Len(t, loaded.Clients, 2)
	assert.True(t, loaded.Clients[0].IsPrimary)
	assert.Equal(t, "Ana Lopez", loaded.PrimaryClient().FullName())
	assert.Equal(t, 450000.0, *loaded.PurchasePrice)
}

func TestTransactionService_CreateFromWizard_IsAtomic(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	service := NewTransactionService(db, nil)

	// dropping the clients table makes the last insert of the unit fail
	require.NoError(t, db.Migrator().DropTable(&models.Client{}))

	_, err := service.CreateFromWizard(context.Background(), nil, sampleTransactionDraft())
	require.Error(t, err)

	var properties, transactions int64
	db.Model(&models.Property{}).Count(&properties)
	db.Model(&models.Transaction{}).Count(&transactions)
	assert.Zero(t, properties)
	assert.Zero(t, transactions)
}

func TestTransactionService_CreateFromWizardSessionIsIdempotent(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	service := NewTransactionService(db, nil)
	ctx := context.Background()

	draft := sampleTransactionDraft()
	draft.SessionID = "wiz_retry"
	first, err := service.CreateFromWizard(ctx, nil, draft)
	require.NoError(t, err)
	again, err := service.CreateFromWizard(ctx, nil, draft)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, again.TransactionID)
	assert.Len(t, again.Clients, 2)

	var properties, transactions int64
	db.Model(&models.Property{}).Count(&properties)
	db.Model(&models.Transaction{}).Count(&transactions)
	assert.EqualValues(t, 1, properties)
	assert.EqualValues(t, 1, transactions)
}

func TestTransactionService_ListAndScope(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	service := NewTransactionService(db, nil)
	ctx := context.Background()

	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	other := seedAgent(t, db, "Sam", "Lee", "sam@example.com")

	// 10 transactions, 4 active
	var active []string
	for i := 0; i < 10; i++ {
		status := models.TransactionStatusPending
		owner := &other.AgentID
		if i%3 == 0 {
			status = models.TransactionStatusActive
			owner = &agent.AgentID
		}
		txn := seedTransaction(t, db, owner, status, floatPtr(float64(100000*(i+1))))
		if status == models.TransactionStatusActive {
			active = append(active, txn.TransactionID)
		}
	}
	require.Len(t, active, 4)

	got, err := service.ListTransactions(ctx, Unrestricted, ListQuery{
		Filter: progress.Filter{StatusFilter: []models.TransactionStatus{models.TransactionStatusActive}},
		Sort:   progress.SortByCreatedAt,
	})
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i := range got {
		ids[i] = got[i].TransactionID
	}
	assert.ElementsMatch(t, active, ids)

	scoped, err := service.ListTransactions(ctx, AgentScope(agent.AgentID), ListQuery{})
	require.NoError(t, err)
	assert.Len(t, scoped, 4)

	none, err := service.ListTransactions(ctx, AgentScope(""), ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = service.GetTransaction(ctx, AgentScope(agent.AgentID), seedTransaction(t, db, &other.AgentID, models.TransactionStatusPending, nil).TransactionID)
	assert.Equal(t, http.StatusNotFound, apperrors.GetAPIError(err).HTTPStatus)
}

func TestTransactionService_ProgressAndPerformance(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	service := NewTransactionService(db, nil)
	now := time.Now()
	service.now = func() time.Time { return now }
	ctx := context.Background()

	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	seedTransaction(t, db, &agent.AgentID, models.TransactionStatusCompleted, floatPtr(300000))
	seedTransaction(t, db, &agent.AgentID, models.TransactionStatusActive, floatPtr(200000))
	seedTransaction(t, db, nil, models.TransactionStatusPending, nil)

	view, err := service.Progress(ctx, Unrestricted, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, view.Cards, 3)
	assert.Equal(t, 3, view.Metrics.Total)
	assert.Equal(t, 1, view.Metrics.Completed)
	assert.Equal(t, 33, view.Metrics.CompletionRate)
	assert.Equal(t, 500000.0, view.Metrics.TotalVolume)

	perf, err := service.AgentPerformance(ctx, progress.Filter{})
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, agent.AgentID, perf[0].AgentID)
	assert.Equal(t, "Jane Roe", perf[0].AgentName)
	assert.Equal(t, 2, perf[0].Total)
	assert.Equal(t, 50, perf[0].CompletionRate)

	cards, err := service.ListCards(ctx, Unrestricted, ListQuery{Filter: progress.Filter{SearchQuery: "jane"}})
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestTransactionService_StatusChanges(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	feed := &recordingFeed{}
	service := NewTransactionService(db, feed)
	ctx := context.Background()

	a := seedTransaction(t, db, nil, models.TransactionStatusPending, nil)
	b := seedTransaction(t, db, nil, models.TransactionStatusPending, nil)

	updated, err := service.UpdateStatus(ctx, Unrestricted, a.TransactionID, models.TransactionStatusUnderContract)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusUnderContract, updated.Status)

	_, err = service.UpdateStatus(ctx, Unrestricted, a.TransactionID, "sold")
	assert.Equal(t, "INVALID_STATUS", apperrors.GetAPIError(err).Code)

	resp, err := service.BulkUpdateStatus(ctx, &models.BulkStatusUpdateRequest{
		TransactionIDs: []string{a.TransactionID, b.TransactionID, "txn_missing", b.TransactionID},
		Status:         models.TransactionStatusClosing,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, int64(2), resp.Updated)
	assert.Contains(t, feed.ids("transactions", models.ChangeUpdate), b.TransactionID)

	_, err = service.BulkUpdateStatus(ctx, &models.BulkStatusUpdateRequest{Status: models.TransactionStatusClosing})
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAPIError(err).HTTPStatus)
}

func TestTransactionService_Reassign(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	service := NewTransactionService(db, nil)
	ctx := context.Background()

	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	a := seedTransaction(t, db, nil, models.TransactionStatusPending, nil)

	resp, err := service.Reassign(ctx, &models.ReassignTransactionsRequest{TransactionIDs: []string{a.TransactionID}, AgentID: agent.AgentID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Updated)

	loaded, err := service.GetTransaction(ctx, AgentScope(agent.AgentID), a.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Agent)
	assert.Equal(t, "Jane Roe", loaded.Agent.FullName())

	_, err = service.Reassign(ctx, &models.ReassignTransactionsRequest{TransactionIDs: []string{a.TransactionID}, AgentID: "agt_missing"})
	assert.Equal(t, http.StatusNotFound, apperrors.GetAPIError(err).HTTPStatus)
}
