package erp

import "strings"

// CustomerRecord is the ERP-side business partner. It is owned by the ERP;
// this service only reads it and conditionally creates it.
type CustomerRecord struct {
	// Code is the ERP internal key (card code)
	Code string
	// Name is the customer display name
	Name string
	// Phone1, Phone2 and Mobile are the three ERP phone fields matched
	// against normalized snapshot phones
	Phone1 string
	Phone2 string
	Mobile string
	Email  string

	Address   string
	City      string
	State     string
	ZipCode   string
	Country   string
	GroupCode int

	// ExternalCustomerID is the back-reference to the platform customer
	ExternalCustomerID string
}

// MatchesPhone reports whether any of the record's phone fields equals the
// given normalized phone number.
func (c *CustomerRecord) MatchesPhone(normalized string) bool {
	if normalized == "" {
		return false
	}
	return c.Phone1 == normalized || c.Phone2 == normalized || c.Mobile == normalized
}

// CustomerFilter selects customer records on the ERP side
type CustomerFilter struct {
	// Phone matches any of the three phone fields
	Phone string
	// Code matches the internal key exactly
	Code string
	// CodePrefix matches internal keys starting with the prefix; used for
	// collision detection when synthesizing new codes
	CodePrefix string
	Limit      int
}

// NormalizePhone strips every non-digit character and drops the given
// country-code prefix (with or without a leading zero kept by callers).
// "+20 123 456 7890" and "0123-456-7890" both normalize to "1234567890"
// for countryPrefix "20".
func NormalizePhone(raw, countryPrefix string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if countryPrefix != "" && strings.HasPrefix(digits, countryPrefix) {
		digits = digits[len(countryPrefix):]
	}
	digits = strings.TrimPrefix(digits, "0")
	return digits
}
