package normalizers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer struct{ v string }

func (s stringer) String() string { return s.v }

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantName  string
	}{
		{name: "title with period", raw: "Mr. Jon Doe", wantTitle: "Mr.", wantName: "Jon Doe"},
		{name: "stacked titles", raw: "Prof. Dr. Anna Schmidt", wantTitle: "Prof. Dr.", wantName: "Anna Schmidt"},
		{name: "hyphenated title", raw: "Dr.-Ing. Max Weber", wantTitle: "Dr.-Ing.", wantName: "Max Weber"},
		{name: "case insensitive", raw: "MRS jane roe", wantTitle: "MRS", wantName: "jane roe"},
		{name: "no title", raw: "Jane Roe", wantTitle: "", wantName: "Jane Roe"},
		{name: "title only inside name", raw: "Jane Dr Roe", wantTitle: "", wantName: "Jane Dr Roe"},
		{name: "empty", raw: "", wantTitle: "", wantName: ""},
		{name: "surrounding whitespace", raw: "  Sir   Isaac Newton ", wantTitle: "Sir", wantName: "Isaac Newton"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, name := SplitName(tt.raw)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jon doe", NormalizeName("Mr. Jon Doe"))
	assert.Equal(t, "anna-lena meyer", NormalizeName("Frau Anna-Lena Meyer"))
	assert.Equal(t, "", NormalizeName("Dr."))

	t.Run("idempotent", func(t *testing.T) {
		for _, raw := range []string{"Mr. Jon Doe", "Prof. Dr. Anna Schmidt", "  x  ", "Jane Dr Roe", "Dr.-Ing. Max"} {
			once := NormalizeName(raw)
			assert.Equal(t, once, NormalizeName(once), raw)
		}
	})
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "  Hello \t  World ", want: "hello world"},
		{name: "int", in: 12345, want: "12345"},
		{name: "float", in: 1.5, want: "1.5"},
		{name: "whole float", in: float64(80331), want: "80331"},
		{name: "bytes", in: []byte("ABC"), want: "abc"},
		{name: "stringer", in: stringer{v: " Foo  Bar"}, want: "foo bar"},
		{name: "bool", in: true, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prepare(tt.in))
		})
	}
}

func TestPrepare_NilStringer(t *testing.T) {
	var s *stringerPtr
	assert.Equal(t, "", Prepare(s))
}

type stringerPtr struct{ v string }

func (s *stringerPtr) String() string { return s.v }

func TestRegistry(t *testing.T) {
	_, ok := Get("does_not_exist")
	assert.False(t, ok)

	fn, ok := Get("nname")
	require.True(t, ok)
	assert.Equal(t, "jon doe", fn("Dr. Jon Doe"))

	assert.Equal(t, "a@b.com", ApplyChain(" A@B.com ", "trim", "lowercase"))
	assert.Equal(t, "raw", Apply("raw", "does_not_exist"))

	Register("upper_test", func(s string) string { return fmt.Sprintf("<%s>", s) })
	assert.Equal(t, "<x>", Apply("x", "upper_test"))
}

func TestIsStreet(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{line: "221b Baker Street", want: true},
		{line: "Hauptstraße 5", want: true},
		{line: "Karl-Schwarzschild-Str. 2", want: true},
		{line: "P.O. Box 1234", want: true},
		{line: "Postfach 10 20 30", want: true},
		{line: "1600 Amphitheatre Pkwy", want: true},
		{line: "University of Cambridge", want: false},
		{line: "Department of Physics", want: false},
		{line: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStreet(tt.line))
		})
	}
}

func TestIsOrganisation(t *testing.T) {
	assert.True(t, IsOrganisation("University of Cambridge"))
	assert.True(t, IsOrganisation("Max Planck Institute for Astronomy"))
	assert.True(t, IsOrganisation("Acme GmbH"))
	assert.False(t, IsOrganisation("Department of Physics"))
	assert.False(t, IsOrganisation("221b Baker Street"))
}

func TestSplitAddressLines(t *testing.T) {
	t.Run("four lines", func(t *testing.T) {
		parts := SplitAddressLines([]string{
			"University of Cambridge",
			"Institute of Astronomy",
			"Madingley Road 1",
			"PO Box 12",
		})
		assert.Equal(t, AddressParts{
			Organisation: "University of Cambridge",
			Department:   "Institute of Astronomy",
			Street1:      "Madingley Road 1",
			Street2:      "PO Box 12",
		}, parts)
	})

	t.Run("department before organisation", func(t *testing.T) {
		parts := SplitAddressLines([]string{"Department of Physics", "University of Oxford", "Parks Road 3"})
		assert.Equal(t, "University of Oxford", parts.Organisation)
		assert.Equal(t, "Department of Physics", parts.Department)
		assert.Equal(t, "Parks Road 3", parts.Street1)
		assert.Empty(t, parts.Street2)
	})

	t.Run("surplus lines go to streets", func(t *testing.T) {
		parts := SplitAddressLines([]string{"Acme Inc", "Sales", "Building C", "12 Main St", "Floor 3"})
		assert.Equal(t, "Acme Inc", parts.Organisation)
		assert.Equal(t, "Sales", parts.Department)
		assert.Equal(t, "12 Main St", parts.Street1)
		assert.Equal(t, "Building C, Floor 3", parts.Street2)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, AddressParts{}, SplitAddressLines(nil))
		assert.Equal(t, AddressParts{}, SplitAddressLines([]string{" ", ""}))
	})
}

func TestCountryCache(t *testing.T) {
	cache := NewCountryCache()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "US", want: "US"},
		{raw: "us", want: "US"},
		{raw: "United States", want: "US"},
		{raw: "USA", want: "US"},
		{raw: " Germany ", want: "DE"},
		{raw: "DEU", want: "DE"},
		{raw: "uk", want: "GB"},
		{raw: "Atlantis", want: "atlantis"},
		{raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, cache.Resolve(tt.raw))
		})
	}

	before := cache.Len()
	cache.Resolve("USA")
	assert.Equal(t, before, cache.Len())

	assert.Equal(t, 0, NewCountryCache().Len())
}
