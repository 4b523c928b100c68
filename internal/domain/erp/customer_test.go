package erp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		countryPrefix string
		want          string
	}{
		{
			name:          "international format with spaces",
			raw:           "+20 123 456 7890",
			countryPrefix: "20",
			want:          "1234567890",
		},
		{
			name:          "local format with dashes and leading zero",
			raw:           "0123-456-7890",
			countryPrefix: "20",
			want:          "1234567890",
		},
		{
			name:          "already bare",
			raw:           "1234567890",
			countryPrefix: "20",
			want:          "1234567890",
		},
		{
			name:          "parentheses and dots",
			raw:           "(012) 345.678.90",
			countryPrefix: "20",
			want:          "1234567890",
		},
		{
			name:          "country prefix then leading zero",
			raw:           "+2001234567890",
			countryPrefix: "20",
			want:          "1234567890",
		},
		{
			name:          "no country prefix configured",
			raw:           "+20 123 456 7890",
			countryPrefix: "",
			want:          "201234567890",
		},
		{
			name:          "empty input",
			raw:           "",
			countryPrefix: "20",
			want:          "",
		},
		{
			name:          "letters stripped",
			raw:           "phone: 0123456",
			countryPrefix: "20",
			want:          "123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw, tt.countryPrefix))
		})
	}
}

func TestCustomerRecord_MatchesPhone(t *testing.T) {
	record := &CustomerRecord{
		Code:   "C100045",
		Phone1: "1234567890",
		Mobile: "1098765432",
	}

	assert.True(t, record.MatchesPhone("1234567890"))
	assert.True(t, record.MatchesPhone("1098765432"))
	assert.False(t, record.MatchesPhone("5550001111"))
	assert.False(t, record.MatchesPhone(""), "empty phone never matches")
}
