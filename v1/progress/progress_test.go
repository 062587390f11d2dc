package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func txn(id string, status models.TransactionStatus) models.Transaction {
	t := models.Transaction{
		TransactionID: id,
		ServiceTier:   models.TierCoreBuyer,
		Status:        status,
		Property:      models.Property{StreetAddress: "1 Main St", City: "Austin"},
	}
	t.CreatedAt = now.Add(-48 * time.Hour)
	return t
}

func ids(records []models.Transaction) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.TransactionID
	}
	return out
}

func TestApply_StatusFilterPreservesOrder(t *testing.T) {
	var records []models.Transaction
	statuses := []models.TransactionStatus{"pending", "active", "closing", "active", "completed", "active", "pending", "cancelled", "active", "closing"}
	for i, s := range statuses {
		records = append(records, txn(fmt.Sprintf("t%d", i), s))
	}

	got := Apply(records, Filter{StatusFilter: []models.TransactionStatus{models.TransactionStatusActive}})
	assert.Equal(t, []string{"t1", "t3", "t5", "t8"}, ids(got))
	assert.Len(t, records, 10)
}

func TestApply_EmptyFilterMatchesAll(t *testing.T) {
	records := []models.Transaction{txn("a", "pending"), txn("b", "active")}
	assert.Equal(t, []string{"a", "b"}, ids(Apply(records, Filter{SearchQuery: "   "})))
}

func TestApply_Search(t *testing.T) {
	a := txn("a", "active")
	a.Property = models.Property{StreetAddress: "12 Oak Ave", City: "Austin"}
	b := txn("b", "active")
	b.Property = models.Property{StreetAddress: "9 Elm St", City: "Dallas"}
	b.Clients = []models.Client{{FirstName: "Maria", LastName: "Lopez"}}
	c := txn("c", "active")
	c.Agent = &models.AgentProfile{FirstName: "Jordan", LastName: "Oakley"}

	records := []models.Transaction{a, b, c}
	assert.Equal(t, []string{"a", "c"}, ids(Apply(records, Filter{SearchQuery: "OAK"})))
	assert.Equal(t, []string{"b"}, ids(Apply(records, Filter{SearchQuery: "maria lo"})))
	assert.Equal(t, []string{"b"}, ids(Apply(records, Filter{SearchQuery: "dallas"})))
}

func TestApply_CombinedPredicatesAreANDed(t *testing.T) {
	a := txn("a", "active")
	a.ServiceTier = models.TierEliteBuyer
	b := txn("b", "active")
	c := txn("c", "pending")
	c.ServiceTier = models.TierEliteBuyer

	got := Apply([]models.Transaction{a, b, c}, Filter{
		ServiceFilter: []models.ServiceTier{models.TierEliteBuyer},
		StatusFilter:  []models.TransactionStatus{models.TransactionStatusActive},
	})
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestApply_DateRangeInclusive(t *testing.T) {
	d := func(day int) *time.Time { return ptr(time.Date(2026, 11, day, 0, 0, 0, 0, time.UTC)) }

	a := txn("a", "active")
	a.ClosingDate = d(1)
	b := txn("b", "active")
	b.ClosingDate = d(15)
	c := txn("c", "active")
	c.ClosingDate = d(30)
	none := txn("none", "active")

	records := []models.Transaction{a, b, c, none}
	assert.Equal(t, []string{"a", "b"}, ids(Apply(records, Filter{DateRange: &DateRange{From: d(1), To: d(15)}})))
	assert.Equal(t, []string{"b", "c"}, ids(Apply(records, Filter{DateRange: &DateRange{From: d(15)}})))
	assert.Equal(t, []string{"a"}, ids(Apply(records, Filter{DateRange: &DateRange{To: d(1)}})))
	assert.Len(t, Apply(records, Filter{DateRange: &DateRange{}}), 4)
}

func TestSort(t *testing.T) {
	a := txn("a", "active")
	a.PurchasePrice = ptr(300000.0)
	b := txn("b", "active")
	c := txn("c", "active")
	c.PurchasePrice = ptr(500000.0)
	d := txn("d", "active")
	d.PurchasePrice = ptr(300000.0)

	records := []models.Transaction{a, b, c, d}
	Sort(records, SortByPurchasePrice, false)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(records))

	Sort(records, SortByPurchasePrice, true)
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(records))
}

func TestSort_CreatedAt(t *testing.T) {
	a := txn("a", "active")
	b := txn("b", "active")
	b.CreatedAt = now.Add(-time.Hour)

	records := []models.Transaction{b, a}
	Sort(records, SortByCreatedAt, false)
	assert.Equal(t, []string{"a", "b"}, ids(records))
	Sort(records, SortByCreatedAt, true)
	assert.Equal(t, []string{"b", "a"}, ids(records))
	assert.False(t, SortKey("status").IsValid())
}

func TestComputeMetrics(t *testing.T) {
	assert.Equal(t, 0, ComputeMetrics(nil, now).CompletionRate)
	assert.Equal(t, 0, ComputeMetrics(nil, now).Total)

	records := []models.Transaction{
		txn("a", "completed"), txn("b", "active"), txn("c", "pending"),
	}
	records[0].CreatedAt = now.Add(-10*24*time.Hour - time.Hour)
	records[1].CreatedAt = now.Add(-3*24*time.Hour - 23*time.Hour)
	records[2].CreatedAt = now.Add(-1 * time.Hour)
	records[0].PurchasePrice = ptr(100.0)
	records[1].PurchasePrice = ptr(50.0)

	m := ComputeMetrics(records, now)
	require.Equal(t, 3, m.Total)
	assert.Equal(t, 33, m.CompletionRate)
	// floor(10.04)=10, floor(3.96)=3, floor(0.04)=0 -> mean 4.33 -> 4
	assert.Equal(t, 4, m.AvgDaysInPhase)
	assert.Equal(t, 1, m.Active)
	assert.Equal(t, 1, m.ByStatus[models.TransactionStatusPending])
	assert.Equal(t, 3, m.ByTier[models.TierCoreBuyer])
	assert.Equal(t, 150.0, m.TotalVolume)
}

func TestAgentPerformance(t *testing.T) {
	agentA, agentB := "agt_a", "agt_b"
	mk := func(id string, agent *string, status models.TransactionStatus) models.Transaction {
		t := txn(id, status)
		t.AgentID = agent
		if agent != nil {
			t.Agent = &models.AgentProfile{AgentID: *agent, FirstName: "Agent", LastName: *agent}
		}
		return t
	}

	records := []models.Transaction{
		mk("1", &agentB, "completed"),
		mk("2", &agentA, "active"),
		mk("3", &agentB, "active"),
		mk("4", nil, "active"),
		mk("5", &agentA, "completed"),
	}

	stats := AgentPerformance(records, now)
	require.Len(t, stats, 2)
	assert.Equal(t, "agt_a", stats[0].AgentID)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 50, stats[0].CompletionRate)
	assert.Equal(t, 2, stats[0].AvgDays)
	assert.Equal(t, "Agent agt_a", stats[0].AgentName)
	assert.Equal(t, "agt_b", stats[1].AgentID)
}
