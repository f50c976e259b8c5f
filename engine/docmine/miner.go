// Package docmine extracts a VIN and the two-part HSN/TSN regulatory code
// from the OCR text of a German vehicle registration document. It is pure
// text mining with positional heuristics tuned to the Fahrzeugschein
// layout, best-effort rather than a VIN-standard validator.
package docmine

import (
	"regexp"
	"strings"

	"github.com/partscout/partscout/engine/domain"
)

// vinAnchor is the label printed next to field E on the registration
// certificate.
const vinAnchor = "Fahrzeug-Identifizierungsnummer"

// maxWindowLines caps the extraction window below the anchor line.
const maxWindowLines = 12

var (
	// VIN alphabet excludes I, O, Q per the standard.
	vinRe       = regexp.MustCompile(`\b([A-HJ-NPR-Z0-9]{17})\b`)
	fourDigitRe = regexp.MustCompile(`\b\d{4}\b`)
	hsnRe       = regexp.MustCompile(`^([A-Z]+)`)
)

// Window returns the block of text the field heuristics should run over:
// starting at the first line containing the VIN label or a 17-character
// VIN-alphabet run, capped at 12 lines. Without an anchor line the full
// text is returned unmodified.
func Window(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.Contains(line, vinAnchor) || vinRe.MatchString(line) {
			end := i + maxWindowLines
			if end > len(lines) {
				end = len(lines)
			}
			return strings.Join(lines[i:end], "\n")
		}
	}
	return text
}

// Extract mines VIN, HSN, and TSN from OCR text. Each field is
// independently optional; partial extraction is a valid, non-error
// outcome.
//
// Heuristics, over non-empty trimmed lines:
//   - TSN: the second standalone 4-digit token on the first line. The
//     first such token is treated as noise (typically a year).
//   - HSN: the leading run of uppercase letters on the second line.
//   - VIN: the first 17-character VIN-alphabet token anywhere in the text.
func Extract(text string) domain.DocumentFields {
	var out domain.DocumentFields

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}

	if len(lines) > 0 {
		if nums := fourDigitRe.FindAllString(lines[0], -1); len(nums) >= 2 {
			out.TSN = nums[1]
		}
	}
	if len(lines) >= 2 {
		if m := hsnRe.FindStringSubmatch(lines[1]); m != nil {
			out.HSN = m[1]
		}
	}
	if m := vinRe.FindStringSubmatch(text); m != nil {
		out.VIN = m[1]
	}
	return out
}

// Mine windows the text and extracts the document fields in one step.
func Mine(text string) domain.DocumentFields {
	return Extract(Window(text))
}
