package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// AddressParts is the result of splitting free-form address lines.
type AddressParts struct {
	Organisation string `json:"organisation"`
	Department   string `json:"department"`
	Street1      string `json:"street_1"`
	Street2      string `json:"street_2"`
}

// wordPattern matches any of words as a whole word. Go's \b only knows ASCII, so
// boundaries are spelled out to keep umlauts and accents inside words.
func wordPattern(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(words, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}

var streetWords = wordPattern(
	"street", "st", "road", "rd", "avenue", "ave", "av", "place", "pl", "lane", "ln", "drive",
	"way", "boulevard", "blvd", "suite", "ste", "square", "sq", "court", "ct", "plaza", "parkway",
	"pkwy", "highway", "hwy", "str", "via", "viale", "piazza", "rue", "avenida", "calle", "camino",
	"plein", "laan", "straat", "vej", "gatan", "vägen",
)

// streetSuffixes catches German-style compounds such as "Hauptstraße" or "Marktplatz".
var streetSuffixes = regexp.MustCompile(`(?i)(?:straße|strasse|str\.|gasse|platz|allee|weg)(?:[^\p{L}]|$)`)

var poBox = wordPattern(`p\.?\s*o\.?\s*box`, "postbox", "postfach", "casilla", "apartado")

var organisationWords = wordPattern(
	"university", "universität", "université", "università", "universidad", "universidade",
	"universiteit", "institute", "institut", "instituto", "istituto", "laboratory", "laboratories",
	"lab", "labs", "observatory", "observatorio", "observatoire", "osservatorio", "sternwarte",
	"college", "school", "academy", "akademie", "society", "foundation", "stiftung", "centre",
	"center", "centro", "museum", "planetarium", "agency", "association", "council", "corporation",
	"company", "ministry", "library", "llc", "inc", "ltd", "gmbh", "ag", "plc", "bv", "srl",
)

// IsStreet reports whether an address line looks like a street address or a post box.
func IsStreet(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if poBox.MatchString(line) {
		return true
	}
	if !hasDigit(line) {
		return false
	}
	return streetWords.MatchString(line) || streetSuffixes.MatchString(line) || unicode.IsDigit(rune(line[0]))
}

// IsOrganisation reports whether an address line looks like the name of an institution or company.
func IsOrganisation(line string) bool {
	return organisationWords.MatchString(line)
}

// SplitAddressLines distributes free-form address lines over organisation, department
// and the two street lines. Street-looking lines fill the streets, the remaining lines
// fill organisation and then department; surplus lines are appended to the streets.
func SplitAddressLines(lines []string) AddressParts {
	var streets, others []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsStreet(line) {
			streets = append(streets, line)
		} else {
			others = append(others, line)
		}
	}

	// "Department of Physics" listed before "University of X"
	if len(others) >= 2 && !IsOrganisation(others[0]) && IsOrganisation(others[1]) {
		others[0], others[1] = others[1], others[0]
	}

	var parts AddressParts
	if len(others) > 0 {
		parts.Organisation = others[0]
	}
	if len(others) > 1 {
		parts.Department = others[1]
	}
	if len(others) > 2 {
		streets = append(streets, others[2:]...)
	}
	if len(streets) > 0 {
		parts.Street1 = streets[0]
	}
	if len(streets) > 1 {
		parts.Street2 = strings.Join(streets[1:], ", ")
	}
	return parts
}
