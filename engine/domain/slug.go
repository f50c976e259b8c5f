package domain

import "strings"

// umlautReplacer transliterates German characters before hyphenation so
// "Zündkerze" slugs the same way the origin site slugs it.
var umlautReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "ae", "Ö", "oe", "Ü", "ue",
)

// Slugify lowercases s, applies umlaut/ß substitutions, and replaces spaces
// with hyphens. Deterministic and pure; parentheses and other punctuation
// pass through untouched, matching the origin site's URL scheme:
//
//	Slugify("VW Passat B8 Variant (3G)") == "vw-passat-b8-variant-(3g)"
func Slugify(s string) string {
	s = umlautReplacer.Replace(s)
	s = strings.ToLower(s)
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "-")
}

// brandSlugOverrides maps brands whose catalog slug is not a plain
// lowercase-hyphenation of the display name.
var brandSlugOverrides = map[Brand]string{
	BrandFebiBilstein: "febi-bilstein",
}

// BrandSlug returns the origin catalog's URL segment for a brand.
func BrandSlug(b Brand) string {
	if s, ok := brandSlugOverrides[b]; ok {
		return s
	}
	return Slugify(string(b))
}
