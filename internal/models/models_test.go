package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"leadership", CategoryLeadership},
		{" Products ", CategoryProducts},
		{"FINANCIALS", CategoryFinancials},
		{"careers", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCategory(tt.in), tt.in)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 42, ClampScore(42))
	assert.Equal(t, 100, ClampScore(250))
}

func TestCompanyContext(t *testing.T) {
	reg := Registration{FirstName: "Ada", LastName: "Lovelace", CompanyWebsite: "https://acme.com"}

	cc := reg.CompanyContext("")
	assert.Equal(t, "Ada Lovelace's company", cc.CompanyName)
	assert.Equal(t, DefaultObjective, cc.Objective)
	assert.Equal(t,
		"company_name=Ada Lovelace's company; website=https://acme.com; objective=business intelligence gathering",
		cc.String())

	assert.Equal(t, "market research", reg.CompanyContext("market research").Objective)
}

func TestRegistrationValidate(t *testing.T) {
	valid := Registration{FirstName: "A", LastName: "B", CompanyWebsite: "https://acme.com"}
	assert.NoError(t, valid.Validate())

	linkedinOnly := Registration{FirstName: "A", LastName: "B", LinkedIn: "https://linkedin.com/in/someone"}
	assert.NoError(t, linkedinOnly.Validate())

	noSources := Registration{FirstName: "A", LastName: "B"}
	err := noSources.Validate()
	assert.True(t, eris.Is(err, ErrNoSources))
	assert.False(t, noSources.HasSources())

	blank := Registration{FirstName: "A", LastName: "B", CompanyWebsite: "   "}
	err = blank.Validate()
	var blankFields ValidationErrors
	require.True(t, errors.As(err, &blankFields), "a blank website is an invalid URL, not a missing source")
	assert.Equal(t, "company_website", blankFields[0].Field)
	assert.False(t, eris.Is(err, ErrNoSources))

	bad := Registration{FirstName: "", LastName: "B", CompanyWebsite: "ftp://acme.com"}
	err = bad.Validate()
	var fields ValidationErrors
	require.True(t, errors.As(err, &fields))
	require.Len(t, fields, 2)
	assert.Equal(t, "first_name", fields[0].Field)
	assert.Equal(t, "company_website", fields[1].Field)
	assert.Contains(t, err.Error(), "first_name: must be between 1 and 100 characters")
}

func TestExtractionResultCounts(t *testing.T) {
	r := ExtractionResult{
		"https://acme.com/a": Success("# About"),
		"https://acme.com/b": Failure("Failed to scrape https://acme.com/b: boom"),
		"https://acme.com/c": Success("# Team"),
	}
	ok, failed := r.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, "# About", r["https://acme.com/a"].Content)
	assert.Empty(t, r["https://acme.com/b"].Content)
}

func TestRegistrationValidateCountsCharacters(t *testing.T) {
	cjk := strings.Repeat("李", 60)
	reg := Registration{FirstName: cjk, LastName: "B", CompanyWebsite: "https://acme.com"}
	assert.NoError(t, reg.Validate(), "60 characters is within the limit even at 180 bytes")

	reg.FirstName = strings.Repeat("李", 101)
	var fields ValidationErrors
	require.True(t, errors.As(reg.Validate(), &fields))
	assert.Equal(t, "first_name", fields[0].Field)

	reg.FirstName = " "
	assert.NoError(t, reg.Validate(), "length is counted on the raw value")
}
