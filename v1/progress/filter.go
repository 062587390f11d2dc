// Package progress filters, sorts and aggregates transaction records for the
// progress dashboards.
package progress

import (
	"sort"
	"strings"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// DateRange is an inclusive closing-date window. Either bound may be nil.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set
func (r *DateRange) IsZero() bool {
	return r == nil || (r.From == nil && r.To == nil)
}

// Filter holds the optional predicates. Absent predicates match everything.
type Filter struct {
	SearchQuery   string                     `json:"searchQuery,omitempty"`
	ServiceFilter []models.ServiceTier       `json:"serviceFilter,omitempty"`
	StatusFilter  []models.TransactionStatus `json:"statusFilter,omitempty"`
	DateRange     *DateRange                 `json:"dateRange,omitempty"`
}

// Apply returns the records matching every present predicate, in their original order
func Apply(records []models.Transaction, f Filter) []models.Transaction {
	query := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	out := make([]models.Transaction, 0, len(records))
	for i := range records {
		if Matches(&records[i], f, query) {
			out = append(out, records[i])
		}
	}
	return out
}

// Matches tests one record. query must already be lower-cased and trimmed.
func Matches(t *models.Transaction, f Filter, query string) bool {
	if query != "" && !matchesSearch(t, query) {
		return false
	}
	if len(f.ServiceFilter) > 0 && !containsTier(f.ServiceFilter, t.ServiceTier) {
		return false
	}
	if len(f.StatusFilter) > 0 && !containsStatus(f.StatusFilter, t.Status) {
		return false
	}
	if !f.DateRange.IsZero() && !inRange(t.ClosingDate, f.DateRange) {
		return false
	}
	return true
}

func matchesSearch(t *models.Transaction, query string) bool {
	haystack := []string{t.Property.StreetAddress, t.Property.City}
	for i := range t.Clients {
		haystack = append(haystack, t.Clients[i].FullName())
	}
	if t.Agent != nil {
		haystack = append(haystack, t.Agent.FullName())
	}
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), query) {
			return true
		}
	}
	return false
}

func containsTier(list []models.ServiceTier, v models.ServiceTier) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsStatus(list []models.TransactionStatus, v models.TransactionStatus) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// inRange compares calendar days so a closing date equal to either bound is included
func inRange(closing *time.Time, r *DateRange) bool {
	if closing == nil {
		return false
	}
	day := truncateDay(*closing)
	if r.From != nil && day.Before(truncateDay(*r.From)) {
		return false
	}
	if r.To != nil && day.After(truncateDay(*r.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortKey selects the field Sort orders by
type SortKey string

const (
	SortByCreatedAt     SortKey = "created_at"
	SortByClosingDate   SortKey = "closing_date"
	SortByPurchasePrice SortKey = "purchase_price"
	SortByAddress       SortKey = "address"
)

// IsValid checks the key against the known set
func (k SortKey) IsValid() bool {
	switch k {
	case SortByCreatedAt, SortByClosingDate, SortByPurchasePrice, SortByAddress:
		return true
	}
	return false
}

// Sort orders records in place. It is stable, and records missing the key sort last in either direction.
func Sort(records []models.Transaction, key SortKey, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		switch key {
		case SortByClosingDate:
			return lessOptional(a.ClosingDate == nil, b.ClosingDate == nil, desc, func() int {
				return a.ClosingDate.Compare(*b.ClosingDate)
			})
		case SortByPurchasePrice:
			return lessOptional(a.PurchasePrice == nil, b.PurchasePrice == nil, desc, func() int {
				return compareFloat(*a.PurchasePrice, *b.PurchasePrice)
			})
		case SortByAddress:
			return lessOptional(a.Property.StreetAddress == "", b.Property.StreetAddress == "", desc, func() int {
				return strings.Compare(strings.ToLower(a.Property.StreetAddress), strings.ToLower(b.Property.StreetAddress))
			})
		default:
			return lessOptional(false, false, desc, func() int {
				return a.CreatedAt.Compare(b.CreatedAt)
			})
		}
	})
}

func lessOptional(aMissing, bMissing, desc bool, cmp func() int) bool {
	switch {
	case aMissing && bMissing:
		return false
	case aMissing:
		return false
	case bMissing:
		return true
	}
	c := cmp()
	if desc {
		return c > 0
	}
	return c < 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
