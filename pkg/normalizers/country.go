package normalizers

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// countryAliases covers common spellings that are not ISO-3166 codes.
var countryAliases = map[string]string{
	"uk":                       "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"great britain":            "GB",
	"united kingdom":           "GB",
	"usa":                      "US",
	"u.s.a.":                   "US",
	"u.s.":                     "US",
	"united states":            "US",
	"united states of america": "US",
	"america":                  "US",
	"germany":                  "DE",
	"deutschland":              "DE",
	"austria":                  "AT",
	"österreich":               "AT",
	"switzerland":              "CH",
	"schweiz":                  "CH",
	"suisse":                   "CH",
	"france":                   "FR",
	"italy":                    "IT",
	"italia":                   "IT",
	"spain":                    "ES",
	"españa":                   "ES",
	"netherlands":              "NL",
	"the netherlands":          "NL",
	"holland":                  "NL",
	"belgium":                  "BE",
	"denmark":                  "DK",
	"sweden":                   "SE",
	"norway":                   "NO",
	"finland":                  "FI",
	"poland":                   "PL",
	"czech republic":           "CZ",
	"czechia":                  "CZ",
	"portugal":                 "PT",
	"ireland":                  "IE",
	"canada":                   "CA",
	"mexico":                   "MX",
	"brazil":                   "BR",
	"argentina":                "AR",
	"chile":                    "CL",
	"australia":                "AU",
	"new zealand":              "NZ",
	"japan":                    "JP",
	"china":                    "CN",
	"india":                    "IN",
	"russia":                   "RU",
	"south africa":             "ZA",
	"south korea":              "KR",
	"korea":                    "KR",
}

// CountryCache resolves free-form country values to ISO-3166 alpha-2 identifiers.
// A cache belongs to one deduplication run and is safe for concurrent use.
type CountryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCountryCache creates an empty cache.
func NewCountryCache() *CountryCache {
	return &CountryCache{entries: make(map[string]string)}
}

// Resolve returns the ISO-3166 identifier for raw. Values that cannot be resolved
// are returned prepared (trimmed, collapsed, lower-cased) so equal spellings still
// compare equal. Blank input resolves to "".
func (c *CountryCache) Resolve(raw string) string {
	key := Prepare(raw)
	if key == "" {
		return ""
	}

	c.mu.RLock()
	id, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return id
	}

	id = lookupCountry(key)

	c.mu.Lock()
	c.entries[key] = id
	c.mu.Unlock()
	return id
}

// Len returns the number of cached lookups.
func (c *CountryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func lookupCountry(key string) string {
	if id, ok := countryAliases[key]; ok {
		return id
	}
	region, err := language.ParseRegion(strings.ToUpper(key))
	if err == nil && region.IsCountry() {
		return region.String()
	}
	return key
}
