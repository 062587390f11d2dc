package handlers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/progress"
	"github.com/concierge-tc/portal-backend/v1/services"
)

const queryDateLayout = "2006-01-02"

// parseFilter reads search, service, status, from and to.
// service and status take comma separated lists.
func parseFilter(values url.Values) (progress.Filter, error) {
	filter := progress.Filter{SearchQuery: strings.TrimSpace(values.Get("search"))}

	for _, s := range utils.SplitAndTrim(values.Get("service")) {
		tier := models.ServiceTier(s)
		if !tier.IsValid() {
			return filter, apperrors.ValidationError("INVALID_QUERY", fmt.Sprintf("unknown service tier %q", s))
		}
		filter.ServiceFilter = append(filter.ServiceFilter, tier)
	}
	for _, s := range utils.SplitAndTrim(values.Get("status")) {
		status := models.TransactionStatus(s)
		if !status.IsValid() {
			return filter, apperrors.ValidationError("INVALID_QUERY", fmt.Sprintf("unknown status %q", s))
		}
		filter.StatusFilter = append(filter.StatusFilter, status)
	}

	from, err := parseQueryDate(values, "from")
	if err != nil {
		return filter, err
	}
	to, err := parseQueryDate(values, "to")
	if err != nil {
		return filter, err
	}
	if from != nil || to != nil {
		if from != nil && to != nil && to.Before(*from) {
			return filter, apperrors.ValidationError("INVALID_QUERY", "to must not be before from")
		}
		filter.DateRange = &progress.DateRange{From: from, To: to}
	}
	return filter, nil
}

func parseQueryDate(values url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(queryDateLayout, raw)
	if err != nil {
		return nil, apperrors.ValidationError("INVALID_QUERY", fmt.Sprintf("%s must be a date in YYYY-MM-DD form", key))
	}
	return &t, nil
}

// parseListQuery adds sort and order (asc|desc) to the filter
func parseListQuery(values url.Values) (services.ListQuery, error) {
	filter, err := parseFilter(values)
	if err != nil {
		return services.ListQuery{}, err
	}
	q := services.ListQuery{Filter: filter}

	if sort := values.Get("sort"); sort != "" {
		q.Sort = progress.SortKey(sort)
		if !q.Sort.IsValid() {
			return q, apperrors.ValidationError("INVALID_QUERY", fmt.Sprintf("unknown sort key %q", sort))
		}
	}
	switch strings.ToLower(values.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, apperrors.ValidationError("INVALID_QUERY", "order must be asc or desc")
	}
	return q, nil
}
