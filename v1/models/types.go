package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is stored as a JSON array in a TEXT column so it works on Postgres and SQLite
type StringList []string

// Scan implements the sql.Scanner interface for StringList
func (sl *StringList) Scan(value interface{}) error {
	if value == nil {
		*sl = StringList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(bytes) == 0 {
		*sl = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, sl)
}

// Value implements the driver.Valuer interface for StringList
func (sl StringList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(sl))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// FlexibleStringSlice can unmarshal both single string and string array from JSON
type FlexibleStringSlice []string

// UnmarshalJSON accepts "a" as well as ["a", "b"]
func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var strArray []string
	arrayErr := json.Unmarshal(data, &strArray)
	if arrayErr == nil {
		*f = FlexibleStringSlice(strArray)
		return nil
	}

	var str string
	stringErr := json.Unmarshal(data, &str)
	if stringErr == nil {
		if strings.TrimSpace(str) == "" {
			*f = FlexibleStringSlice{}
			return nil
		}
		*f = FlexibleStringSlice([]string{str})
		return nil
	}

	return fmt.Errorf("failed to unmarshal FlexibleStringSlice: cannot parse as []string (%v) or string (%v), data: %s",
		arrayErr, stringErr, string(data))
}

// ToStringSlice converts to regular string slice
func (f FlexibleStringSlice) ToStringSlice() []string {
	return []string(f)
}
