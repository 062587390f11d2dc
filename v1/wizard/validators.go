package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/concierge-tc/portal-backend/shared/utils"
)

// DateLayout is the wire format for date-only fields
const DateLayout = "2006-01-02"

// MaxAmount caps every dollar field
const MaxAmount = 1e12

// MaxInspectionPeriodDays caps the offer inspection period
const MaxInspectionPeriodDays = 365

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Email requires a plausible email address
func Email(value interface{}) error {
	s, ok := value.(string)
	if !ok || !utils.IsValidEmail(s) {
		return errors.New("must be a valid email address")
	}
	return nil
}

// ZipCode requires a 5 or 9 digit US zip code
func ZipCode(value interface{}) error {
	s, ok := value.(string)
	if !ok || !zipPattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("must be a 5 digit zip code")
	}
	return nil
}

// PositiveNumber requires a number greater than zero
func PositiveNumber(value interface{}) error {
	n, ok := ToFloat(value)
	if !ok {
		return errors.New("must be a number")
	}
	if n <= 0 {
		return errors.New("must be greater than zero")
	}
	if n > MaxAmount {
		return errors.New("must be at most 1,000,000,000,000")
	}
	return nil
}

// NonNegativeNumber requires a number of zero or more
func NonNegativeNumber(value interface{}) error {
	n, ok := ToFloat(value)
	if !ok {
		return errors.New("must be a number")
	}
	if n < 0 {
		return errors.New("must not be negative")
	}
	if n > MaxAmount {
		return errors.New("must be at most 1,000,000,000,000")
	}
	return nil
}

// IntegerBetween requires a whole number in [min, max]
func IntegerBetween(min, max int) FieldValidator {
	return func(value interface{}) error {
		n, ok := ToFloat(value)
		if !ok {
			return errors.New("must be a number")
		}
		if n != math.Trunc(n) {
			return errors.New("must be a whole number")
		}
		if n < float64(min) || n > float64(max) {
			return fmt.Errorf("must be between %d and %d", min, max)
		}
		return nil
	}
}

// Date requires a YYYY-MM-DD string
func Date(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("must be a date (YYYY-MM-DD)")
	}
	if _, err := time.Parse(DateLayout, strings.TrimSpace(s)); err != nil {
		return errors.New("must be a date (YYYY-MM-DD)")
	}
	return nil
}

// Boolean requires true or false
func Boolean(value interface{}) error {
	if _, ok := value.(bool); !ok {
		return errors.New("must be true or false")
	}
	return nil
}

// OneOf requires a string from the allowed set
func OneOf(allowed ...string) FieldValidator {
	return func(value interface{}) error {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

// NameList requires a non-blank string or a list of non-blank strings
func NameList(value interface{}) error {
	names, ok := ToStringList(value)
	if !ok {
		return errors.New("must be a name or a list of names")
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return errors.New("must not contain blank names")
		}
	}
	return nil
}

// ClientList requires a list of objects each carrying first_name, last_name and an optional valid email
func ClientList(value interface{}) error {
	items, ok := value.([]interface{})
	if !ok {
		return errors.New("must be a list of clients")
	}
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("entry %d must be an object", i+1)
		}
		if isEmpty(obj["first_name"]) || isEmpty(obj["last_name"]) {
			return fmt.Errorf("entry %d needs first_name and last_name", i+1)
		}
		if email, present := obj["email"]; present && !isEmpty(email) {
			if err := Email(email); err != nil {
				return fmt.Errorf("entry %d email %s", i+1, err.Error())
			}
		}
	}
	return nil
}

// ToFloat accepts JSON numbers, Go numeric types and numeric strings
func ToFloat(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", "")), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToStringList accepts a string or a list of strings
func ToStringList(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
