// Package display formats transactions for the card and dashboard views.
package display

import (
	"math"
	"strings"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/progress"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	priceTBD = "$TBD"
	dateTBD  = "Date TBD"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders whole dollars with grouping, e.g. "$450,000". nil renders "$TBD".
func FormatPrice(price *float64) string {
	if price == nil || math.IsNaN(*price) || math.IsInf(*price, 0) {
		return priceTBD
	}
	whole := math.Round(*price)
	if whole == 0 {
		whole = 0 // drops the sign of -0
	}
	return printer.Sprintf("$%.0f", whole)
}

// FormatDate renders M/D/YYYY. nil renders "Date TBD".
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return dateTBD
	}
	return t.Format("1/2/2006")
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// FormatDateString parses an ISO date or timestamp and renders it like FormatDate.
// Blank or unparseable input renders "Date TBD".
func FormatDateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return dateTBD
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FormatDate(&t)
		}
	}
	return dateTBD
}

// StatusBadgeClass returns the CSS classes for a status badge.
// Both "under_contract" and "under-contract" are accepted.
func StatusBadgeClass(status string) string {
	switch status {
	case "pending":
		return "bg-yellow-100 text-yellow-800"
	case "active":
		return "bg-green-100 text-green-800"
	case "under_contract", "under-contract":
		return "bg-blue-100 text-blue-800"
	case "closing":
		return "bg-orange-100 text-orange-800"
	case "completed":
		return "bg-gray-100 text-gray-800"
	case "cancelled":
		return "bg-red-100 text-red-800"
	default:
		return "bg-gray-100 text-gray-800"
	}
}

// StatusLabel is the human label of a status, e.g. "Under Contract"
func StatusLabel(status string) string {
	return titleWords(strings.NewReplacer("_", " ", "-", " ").Replace(status))
}

// TierLabel is the human label of a service tier, e.g. "White Glove Buyer"
func TierLabel(tier models.ServiceTier) string {
	return titleWords(strings.ReplaceAll(string(tier), "_", " "))
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// Card is the JSON card view of a transaction
type Card struct {
	TransactionID     string  `json:"transactionId"`
	Address           string  `json:"address"`
	CityStateZip      string  `json:"cityStateZip"`
	ServiceTier       string  `json:"serviceTier"`
	TierLabel         string  `json:"tierLabel"`
	Status            string  `json:"status"`
	StatusLabel       string  `json:"statusLabel"`
	StatusBadgeClass  string  `json:"statusBadgeClass"`
	Price             string  `json:"price"`
	ClosingDate       string  `json:"closingDate"`
	PrimaryClientName string  `json:"primaryClientName,omitempty"`
	AgentID           *string `json:"agentId,omitempty"`
	AgentName         string  `json:"agentName,omitempty"`
	DaysInPhase       int     `json:"daysInPhase"`
}

// TransactionCard builds the card for t. Property, clients and agent should be preloaded.
func TransactionCard(t *models.Transaction, now time.Time) Card {
	card := Card{
		TransactionID:    t.TransactionID,
		Address:          t.Property.StreetAddress,
		CityStateZip:     cityStateZip(t.Property),
		ServiceTier:      string(t.ServiceTier),
		TierLabel:        TierLabel(t.ServiceTier),
		Status:           string(t.Status),
		StatusLabel:      StatusLabel(string(t.Status)),
		StatusBadgeClass: StatusBadgeClass(string(t.Status)),
		Price:            FormatPrice(t.PurchasePrice),
		ClosingDate:      FormatDate(t.ClosingDate),
		AgentID:          t.AgentID,
		DaysInPhase:      progress.DaysSince(t.CreatedAt, now),
	}
	if c := t.PrimaryClient(); c != nil {
		card.PrimaryClientName = c.FullName()
	}
	if t.Agent != nil {
		card.AgentName = t.Agent.FullName()
	}
	return card
}

// TransactionCards maps TransactionCard over records
func TransactionCards(records []models.Transaction, now time.Time) []Card {
	cards := make([]Card, len(records))
	for i := range records {
		cards[i] = TransactionCard(&records[i], now)
	}
	return cards
}

func cityStateZip(p models.Property) string {
	cityState := strings.TrimSpace(strings.Trim(p.City+", "+p.State, ", "))
	return strings.TrimSpace(cityState + " " + p.ZipCode)
}
