package searchspace

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

func newTestBuilder() *Builder {
	return NewBuilder(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), normalizers.NewCountryCache())
}

func spaceOf(ids ...string) *SearchSpace {
	s := New()
	for _, id := range ids {
		s.Add(models.ContactRecord{ID: id})
	}
	return s
}

func TestSearchSpace(t *testing.T) {
	s := spaceOf("c", "a", "b")

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"c", "a", "b"}, s.IDs())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("zz"))

	t.Run("remove", func(t *testing.T) {
		c := s.Clone()
		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))
		assert.False(t, c.Remove("missing"))
		assert.Equal(t, []string{"c", "b"}, c.IDs())
		assert.Equal(t, 2, c.Len())
		assert.False(t, c.Has("a"))
		_, ok := c.Get("a")
		assert.False(t, ok)

		// clone is independent
		assert.Equal(t, 3, s.Len())
		assert.True(t, s.Has("a"))
	})

	t.Run("re-add after remove goes to the end", func(t *testing.T) {
		c := s.Clone()
		require.True(t, c.Remove("c"))
		c.Add(models.ContactRecord{ID: "c", City: "Paris"})
		assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
		r, ok := c.Get("c")
		require.True(t, ok)
		assert.Equal(t, "Paris", r.City)
	})

	t.Run("replace keeps position", func(t *testing.T) {
		c := s.Clone()
		c.Add(models.ContactRecord{ID: "c", City: "Rome"})
		assert.Equal(t, []string{"c", "a", "b"}, c.IDs())
		assert.Equal(t, 3, c.Len())
	})

	t.Run("range stops early", func(t *testing.T) {
		var seen []string
		s.Range(func(id string, _ models.ContactRecord) bool {
			seen = append(seen, id)
			return len(seen) < 2
		})
		assert.Equal(t, []string{"c", "a"}, seen)
	})

	t.Run("view hides excluded ids", func(t *testing.T) {
		v := s.Without(func(id string) bool { return id == "a" })
		var seen []string
		v.Range(func(id string, _ models.ContactRecord) bool {
			seen = append(seen, id)
			return true
		})
		assert.Equal(t, []string{"c", "b"}, seen)
		assert.Equal(t, 3, s.Len())
	})
}

func TestBuilder_FromContacts(t *testing.T) {
	b := newTestBuilder()
	contacts := []models.Contact{
		{
			ID:           "1",
			Title:        "Dr.",
			FirstName:    " Jane ",
			LastName:     "Roe",
			Organisation: "ESO",
			Street1:      "Karl-Schwarzschild-Str. 2",
			City:         "Garching",
			Country:      "Germany",
			Email:        " jane@eso.org ",
		},
		{ID: "", FirstName: "Nobody"},
		{ID: "2", Organisation: "Acme", Country: "DE"},
	}

	space := b.FromContacts(context.Background(), contacts)
	require.Equal(t, 2, space.Len())
	assert.Equal(t, []string{"1", "2"}, space.IDs())

	r, ok := space.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Dr. Jane Roe", r.Name)
	assert.Equal(t, "Jane", r.FirstName)
	assert.Equal(t, "DE", r.Country)
	assert.Equal(t, "jane@eso.org", r.Email)
	assert.Equal(t, []string{"ESO", "Karl-Schwarzschild-Str. 2"}, r.AddressLines)

	r2, _ := space.Get("2")
	assert.Equal(t, "DE", r2.Country)
	assert.Equal(t, "", r2.Name)
	assert.Equal(t, 2, b.Countries().Len())
}

func TestBuilder_FromFields(t *testing.T) {
	b := newTestBuilder()

	t.Run("plain fields with coercion", func(t *testing.T) {
		r := b.FromFields("row-2", map[string]any{
			"title":      "Mr.",
			"first_name": "Jon",
			"last_name":  "Doe",
			"street_1":   12,
			"country":    "united states",
			"email":      nil,
		})
		assert.Equal(t, "row-2", r.ID)
		assert.Equal(t, "Mr. Jon Doe", r.Name)
		assert.Equal(t, "12", r.Street1)
		assert.Equal(t, "US", r.Country)
		assert.Equal(t, "", r.Email)
		assert.Equal(t, []string{"12"}, r.AddressLines)
	})

	t.Run("address lines are split when structured fields are absent", func(t *testing.T) {
		r := b.FromFields("row-3", map[string]any{
			"name":          "Institute of Astronomy",
			"address_lines": []any{"University of Cambridge", "Institute of Astronomy", "Madingley Road 1"},
		})
		assert.Equal(t, "Institute of Astronomy", r.Name)
		assert.Equal(t, "University of Cambridge", r.Organisation)
		assert.Equal(t, "Institute of Astronomy", r.Department)
		assert.Equal(t, "Madingley Road 1", r.Street1)
		assert.Len(t, r.AddressLines, 3)
	})

	t.Run("newline separated address lines", func(t *testing.T) {
		r := b.FromFields("row-4", map[string]any{"address_lines": "Acme Inc\n\n12 Main St"})
		assert.Equal(t, "Acme Inc", r.Organisation)
		assert.Equal(t, "12 Main St", r.Street1)
	})

	t.Run("structured fields win over address lines", func(t *testing.T) {
		r := b.FromFields("row-5", map[string]any{
			"organisation":  "Globex",
			"address_lines": []string{"Acme Inc", "12 Main St"},
		})
		assert.Equal(t, "Globex", r.Organisation)
		assert.Empty(t, r.Street1)
	})
}
