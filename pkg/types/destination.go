package types

import "strings"

// Destination is the shipping target for a quote request.
type Destination struct {
	CountryCode string `json:"country_code"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
}

// HasPostalCode reports whether the destination is complete enough to quote.
// Quotes are never requested for destinations without a postal code.
func (d Destination) HasPostalCode() bool {
	return strings.TrimSpace(d.PostalCode) != ""
}

// Normalized trims whitespace from every field.
func (d Destination) Normalized() Destination {
	return Destination{
		CountryCode: strings.ToUpper(strings.TrimSpace(d.CountryCode)),
		PostalCode:  strings.TrimSpace(d.PostalCode),
		City:        strings.TrimSpace(d.City),
	}
}
