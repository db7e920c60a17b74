// Package normalizers provides the text normalizations applied to contact fields before comparison
package normalizers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers. Field normalizer chains in matching
// configurations refer to these names.
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", strings.ToLower)
	Register("trim", strings.TrimSpace)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("prepare", func(s string) string { return Prepare(s) })
	Register("nname", NormalizeName)
	Register("nemail", NormalizeEmail)
	Register("naddress", NormalizeAddress)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value untouched.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// CollapseWhitespace trims and replaces every whitespace run with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var addressSeparators = regexp.MustCompile(`[\s,]+`)

// NormalizeAddress lower-cases an address and collapses separators (whitespace and commas)
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)
	s = addressSeparators.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Prepare coerces v to a string, collapses whitespace and lower-cases it.
// It never panics: values that cannot be coerced are treated as blank.
func Prepare(v any) string {
	return strings.ToLower(CollapseWhitespace(Coerce(v)))
}

// Coerce converts a field value of any type to a string. nil and values whose
// conversion fails become "".
func Coerce(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// hasDigit reports whether s contains a decimal digit
func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
