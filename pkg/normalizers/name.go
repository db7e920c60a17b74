package normalizers

import (
	"regexp"
	"strings"
)

// civilTitles are stripped from the front of a name before comparison.
var civilTitles = map[string]struct{}{
	"acad": {}, "brother": {}, "dr": {}, "mr": {}, "mrs": {}, "ms": {}, "miss": {}, "prof": {},
	"sir": {}, "rev": {}, "master": {}, "fr": {}, "ing": {}, "herr": {}, "frau": {}, "dir": {},
	"habil": {}, "med": {}, "phil": {}, "fil": {}, "herrn": {}, "hr": {}, "mag": {}, "mme": {},
	"sheikh": {}, "sig": {}, "sr": {}, "univ": {},
}

var nameSplitter = regexp.MustCompile(`\s+|\.|-`)

// IsTitle reports whether token is a civil title such as "Dr" or "Prof".
func IsTitle(token string) bool {
	_, ok := civilTitles[strings.ToLower(token)]
	return ok
}

// SplitName splits a name into its leading civil titles and the name itself.
//
//	SplitName("Mr. Jon Doe") == ("Mr.", "Jon Doe")
func SplitName(raw string) (title string, name string) {
	parts := splitKeepingDelimiters(raw)

	i := 0
	for _, p := range parts {
		if IsTitle(p) || strings.TrimSpace(p) == "" || p == "." || p == "-" {
			i++
			continue
		}
		break
	}

	return strings.TrimSpace(strings.Join(parts[:i], "")), strings.TrimSpace(strings.Join(parts[i:], ""))
}

// NormalizeName strips civil titles and lower-cases the remainder.
func NormalizeName(raw string) string {
	_, name := SplitName(raw)
	return strings.ToLower(name)
}

// splitKeepingDelimiters splits s on whitespace runs, periods and hyphens and keeps
// the delimiters as separate parts, so joining the parts gives back s.
func splitKeepingDelimiters(s string) []string {
	locs := nameSplitter.FindAllStringIndex(s, -1)
	parts := make([]string, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		parts = append(parts, s[last:loc[0]], s[loc[0]:loc[1]])
		last = loc[1]
	}
	return append(parts, s[last:])
}
