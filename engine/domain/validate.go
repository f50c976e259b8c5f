package domain

import (
	"regexp"
	"strings"
)

var (
	hsnRegex = regexp.MustCompile(`^\d{4}$`)
	tsnRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,3}$`)
)

// ValidateQuery checks a PartQuery at the pipeline entry point. Total
// absence of a usable query term is the only hard input error; everything
// downstream degrades toward empty results instead of raising.
func ValidateQuery(q PartQuery) error {
	if strings.TrimSpace(q.RawText) == "" && q.VehicleFragment == "" {
		return NewValidationError("raw_text", q.RawText, ErrNoQueryTerm)
	}
	for _, b := range q.BrandFilters {
		if !ValidBrands[b] {
			return NewValidationError("brand_filters", string(b), ErrInvalidBrand)
		}
	}
	return nil
}

// ValidateCode checks an HSN/TSN pair before a vehicle lookup: a 4-digit
// manufacturer code and a 1-3 character alphanumeric variant code.
func ValidateCode(hsn, tsn string) error {
	if !hsnRegex.MatchString(hsn) {
		return NewValidationError("hsn", hsn, ErrInvalidHSN)
	}
	if !tsnRegex.MatchString(tsn) {
		return NewValidationError("tsn", tsn, ErrInvalidTSN)
	}
	return nil
}
