package progress

import (
	"math"
	"sort"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// Metrics summarises a set of transactions
type Metrics struct {
	Total          int                              `json:"total"`
	Active         int                              `json:"active"`
	Completed      int                              `json:"completed"`
	CompletionRate int                              `json:"completionRate"`
	AvgDaysInPhase int                              `json:"avgDaysInPhase"`
	TotalVolume    float64                          `json:"totalVolume"`
	ByStatus       map[models.TransactionStatus]int `json:"byStatus"`
	ByTier         map[models.ServiceTier]int       `json:"byTier"`
}

// activeStatuses are the in-flight statuses counted as active
var activeStatuses = map[models.TransactionStatus]bool{
	models.TransactionStatusActive:        true,
	models.TransactionStatusUnderContract: true,
	models.TransactionStatusClosing:       true,
}

// DaysSince returns the whole days elapsed from created to now, never negative
func DaysSince(created, now time.Time) int {
	days := int(math.Floor(now.Sub(created).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// ComputeMetrics aggregates records in a single pass.
// completionRate = round(completed/total*100); avgDaysInPhase = round(mean(whole days since created)).
func ComputeMetrics(records []models.Transaction, now time.Time) Metrics {
	m := Metrics{
		ByStatus: make(map[models.TransactionStatus]int),
		ByTier:   make(map[models.ServiceTier]int),
	}

	totalDays := 0
	for i := range records {
		t := &records[i]
		m.Total++
		m.ByStatus[t.Status]++
		m.ByTier[t.ServiceTier]++
		if t.Status == models.TransactionStatusCompleted {
			m.Completed++
		}
		if activeStatuses[t.Status] {
			m.Active++
		}
		if t.PurchasePrice != nil {
			m.TotalVolume += *t.PurchasePrice
		}
		totalDays += DaysSince(t.CreatedAt, now)
	}

	if m.Total > 0 {
		m.CompletionRate = int(math.Round(float64(m.Completed) / float64(m.Total) * 100))
		m.AvgDaysInPhase = int(math.Round(float64(totalDays) / float64(m.Total)))
	}
	return m
}

// AgentStats is one row of the agent performance panel
type AgentStats struct {
	AgentID        string  `json:"agentId"`
	AgentName      string  `json:"agentName"`
	Total          int     `json:"total"`
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	CompletionRate int     `json:"completionRate"`
	AvgDays        int     `json:"avgDays"`
	TotalVolume    float64 `json:"totalVolume"`
}

// AgentPerformance groups records by agent. Unassigned transactions are skipped.
// Rows are ordered by total descending, then agent id.
func AgentPerformance(records []models.Transaction, now time.Time) []AgentStats {
	type acc struct {
		stats AgentStats
		days  int
	}
	byAgent := make(map[string]*acc)

	for i := range records {
		t := &records[i]
		if t.AgentID == nil || *t.AgentID == "" {
			continue
		}
		a, ok := byAgent[*t.AgentID]
		if !ok {
			a = &acc{stats: AgentStats{AgentID: *t.AgentID}}
			byAgent[*t.AgentID] = a
		}
		if a.stats.AgentName == "" && t.Agent != nil {
			a.stats.AgentName = t.Agent.FullName()
		}
		a.stats.Total++
		if t.Status == models.TransactionStatusCompleted {
			a.stats.Completed++
		}
		if activeStatuses[t.Status] {
			a.stats.Active++
		}
		if t.PurchasePrice != nil {
			a.stats.TotalVolume += *t.PurchasePrice
		}
		a.days += DaysSince(t.CreatedAt, now)
	}

	out := make([]AgentStats, 0, len(byAgent))
	for _, a := range byAgent {
		s := a.stats
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
		s.AvgDays = int(math.Round(float64(a.days) / float64(s.Total)))
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}
