package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows_SingleRow(t *testing.T) {
	rows, err := ParseRows("firstName,lastName,email\nJohn,Doe,john@x.com")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"firstName": "John", "lastName": "Doe", "email": "john@x.com"}, rows[0])
}

func TestParseRows_TrimsAndToleratesCRLF(t *testing.T) {
	rows, err := ParseRows("firstName , lastName,email\r\n  Ana , Diaz , ana@x.com \r\n\r\n")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"firstName": "Ana", "lastName": "Diaz", "email": "ana@x.com"}, rows[0])
}

func TestParseRows_ShortAndLongLines(t *testing.T) {
	rows, err := ParseRows("a,b,c\n1\n1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, Row{"a": "1", "b": "", "c": ""}, rows[0])
	assert.Equal(t, Row{"a": "1", "b": "2", "c": "3"}, rows[1])
}

func TestParseRows_NaiveSplitOnQuotedComma(t *testing.T) {
	rows, err := ParseRows("first_name,last_name,brokerage\nAna,Diaz,\"Smith, Jones\"")
	require.NoError(t, err)
	assert.Equal(t, "\"Smith", rows[0]["brokerage"])
}

func TestParseRows_NoHeader(t *testing.T) {
	_, err := ParseRows(" \n\n")
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestParse_ValidatesAndNumbersRows(t *testing.T) {
	input := "First Name,last_name,Email,Phone\n" +
		"John,Doe,John@X.com,555-0100\n" +
		",Roe,jane@x.com,\n" +
		"Sam,Lee,not-an-email,\n" +
		"Jon,Doe,john@x.com,\n" +
		"Ana,Diaz,ana@x.com,"

	res, err := Parse(input)
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, AgentRecord{Row: 1, FirstName: "John", LastName: "Doe", Email: "john@x.com", Phone: "555-0100"}, res.Records[0])
	assert.Equal(t, 5, res.Records[1].Row)

	require.Len(t, res.Errors, 3)
	assert.Equal(t, RowError{Row: 2, Field: "first_name", Message: "is required"}, res.Errors[0])
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Equal(t, "email", res.Errors[1].Field)
	assert.Equal(t, "duplicates row 1", res.Errors[2].Message)
	assert.Equal(t, "row 2: first_name is required", res.Errors[0].Error())
}
