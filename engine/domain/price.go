package domain

import (
	"strconv"
	"strings"
)

// ParsePrice turns a scraped price string into a float. The origin site
// formats prices with a decimal comma and a trailing euro sign ("30,91 €").
// Unparsable input (including the "N/A" sentinel) yields 0.0, never an
// error: price filtering must not fail a whole search because one card's
// markup drifted.
func ParsePrice(raw string) float64 {
	s := strings.ReplaceAll(raw, "€", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return v
}
