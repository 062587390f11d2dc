// Package csvimport turns a pasted agent roster into validated records.
//
// The parser splits on every comma. Quoted fields and escapes are not supported,
// so a value containing a comma shifts the remaining columns of its row.
package csvimport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/concierge-tc/portal-backend/shared/utils"
)

// ErrNoHeader is returned for input without a header line
var ErrNoHeader = errors.New("csv input has no header row")

// Row is one data line keyed by the header names as written
type Row map[string]string

// ParseRows splits text into header-keyed rows. Blank lines are skipped and fields are trimmed.
func ParseRows(text string) ([]Row, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var header []string
	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitLine(line)
		if header == nil {
			header = fields
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, ErrNoHeader
	}
	return rows, nil
}

func splitLine(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// AgentRecord is a validated import row
type AgentRecord struct {
	Row       int    `json:"row"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Brokerage string `json:"brokerage,omitempty"`
}

// RowError explains why a data row was rejected. Row is 1-based and excludes the header.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result holds the valid records and the per-row errors
type Result struct {
	Records []AgentRecord `json:"records"`
	Errors  []RowError    `json:"errors,omitempty"`
}

// headerAliases maps accepted header spellings (lower-cased, no spaces or underscores) to fields
var headerAliases = map[string]string{
	"firstname":    "first_name",
	"first":        "first_name",
	"lastname":     "last_name",
	"last":         "last_name",
	"email":        "email",
	"emailaddress": "email",
	"phone":        "phone",
	"phonenumber":  "phone",
	"brokerage":    "brokerage",
	"company":      "brokerage",
}

func canonicalHeader(name string) string {
	key := strings.ToLower(name)
	key = strings.NewReplacer("_", "", " ", "", "-", "").Replace(key)
	return headerAliases[key]
}

// Validate converts rows into AgentRecords.
// first_name, last_name and email are required, emails must look valid and be unique in the file.
func Validate(rows []Row) Result {
	result := Result{Records: make([]AgentRecord, 0, len(rows))}
	seen := make(map[string]int)

	for i, row := range rows {
		rowNum := i + 1
		values := make(map[string]string, len(row))
		for name, v := range row {
			if field := canonicalHeader(name); field != "" && values[field] == "" {
				values[field] = v
			}
		}

		rec := AgentRecord{
			Row:       rowNum,
			FirstName: values["first_name"],
			LastName:  values["last_name"],
			Email:     utils.NormalizeEmail(values["email"]),
			Phone:     values["phone"],
			Brokerage: values["brokerage"],
		}

		var rowErr *RowError
		switch {
		case rec.FirstName == "":
			rowErr = &RowError{Row: rowNum, Field: "first_name", Message: "is required"}
		case rec.LastName == "":
			rowErr = &RowError{Row: rowNum, Field: "last_name", Message: "is required"}
		case rec.Email == "":
			rowErr = &RowError{Row: rowNum, Field: "email", Message: "is required"}
		case !utils.IsValidEmail(rec.Email):
			rowErr = &RowError{Row: rowNum, Field: "email", Message: fmt.Sprintf("%q is not a valid email address", rec.Email)}
		}
		if rowErr == nil {
			if first, dup := seen[rec.Email]; dup {
				rowErr = &RowError{Row: rowNum, Field: "email", Message: fmt.Sprintf("duplicates row %d", first)}
			}
		}

		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		seen[rec.Email] = rowNum
		result.Records = append(result.Records, rec)
	}
	return result
}

// Parse runs ParseRows then Validate
func Parse(text string) (Result, error) {
	rows, err := ParseRows(text)
	if err != nil {
		return Result{}, err
	}
	return Validate(rows), nil
}
