// Package matching scores how likely two contact records describe the same person or organisation
package matching

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// DefaultTextRatio is the ratio limit used by SimilarText when a field has no specific limit.
const DefaultTextRatio = 0.90

// Ratio returns the sequence-alignment similarity of a and b in [0,1]: twice the number
// of characters in matching blocks divided by the total length of both strings.
// Identical strings (including two empty strings) score 1.0, disjoint strings 0.0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// the matcher's block search is order dependent
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// SimilarText reports whether a and b are similar after normalization, i.e. their
// ratio is strictly above ratioLimit. A blank value is never similar to a non-blank one.
func SimilarText(a, b string, ratioLimit float64) bool {
	a = normalizers.Prepare(a)
	b = normalizers.Prepare(b)
	if (a == "") != (b == "") {
		return false
	}
	return Ratio(a, b) > ratioLimit
}
