package searchspace

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Builder turns contacts and imported rows into scoring records.
// Use one Builder per run; its country cache is not shared between runs.
type Builder struct {
	logger    ectologger.Logger
	countries *normalizers.CountryCache
}

// NewBuilder creates a builder with its own country cache.
func NewBuilder(logger ectologger.Logger, countries *normalizers.CountryCache) *Builder {
	if countries == nil {
		countries = normalizers.NewCountryCache()
	}
	return &Builder{
		logger:    logger,
		countries: countries,
	}
}

// Countries returns the builder's country cache.
func (b *Builder) Countries() *normalizers.CountryCache {
	return b.countries
}

// FromContacts builds a search space from stored contacts. Contacts without an id are skipped.
func (b *Builder) FromContacts(ctx context.Context, contacts []models.Contact) *SearchSpace {
	ctx, span := tracing.StartSpan(ctx, "searchspace.Builder.FromContacts")
	defer span.End()

	space := New()
	for i := range contacts {
		if strings.TrimSpace(contacts[i].ID) == "" {
			b.logger.WithContext(ctx).Warn("Skipping contact without an id")
			continue
		}
		space.Add(b.FromContact(contacts[i]))
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"contacts":  len(contacts),
		"records":   space.Len(),
		"countries": b.countries.Len(),
	}).Debug("Built search space")

	return space
}

// FromContact converts one stored contact to a scoring record.
func (b *Builder) FromContact(c models.Contact) models.ContactRecord {
	r := models.ContactRecord{
		ID:           strings.TrimSpace(c.ID),
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		Organisation: strings.TrimSpace(c.Organisation),
		Department:   strings.TrimSpace(c.Department),
		Street1:      strings.TrimSpace(c.Street1),
		Street2:      strings.TrimSpace(c.Street2),
		City:         strings.TrimSpace(c.City),
		Country:      b.countries.Resolve(c.Country),
		Email:        strings.TrimSpace(c.Email),
		SecondEmail:  strings.TrimSpace(c.SecondEmail),
		ThirdEmail:   strings.TrimSpace(c.ThirdEmail),
	}
	r.Name = normalizers.CollapseWhitespace(strings.Join([]string{c.Title, r.FirstName, r.LastName}, " "))
	r.AddressLines = nonBlank(r.Organisation, r.Department, r.Street1, r.Street2)
	return r
}

// FromFields converts an imported row to a scoring record. Values of any type are
// coerced to strings. When organisation, department and street lines are all absent,
// they are recovered from the address_lines field.
func (b *Builder) FromFields(id string, fields map[string]any) models.ContactRecord {
	get := func(name string) string {
		return strings.TrimSpace(normalizers.Coerce(fields[name]))
	}

	r := models.ContactRecord{
		ID:           id,
		FirstName:    get(models.FieldFirstName),
		LastName:     get(models.FieldLastName),
		Organisation: get(models.FieldOrganisation),
		Department:   get(models.FieldDepartment),
		Street1:      get(models.FieldStreet1),
		Street2:      get(models.FieldStreet2),
		City:         get(models.FieldCity),
		Country:      b.countries.Resolve(get(models.FieldCountry)),
		Email:        get(models.FieldEmail),
		SecondEmail:  get(models.FieldSecondEmail),
		ThirdEmail:   get(models.FieldThirdEmail),
		AddressLines: addressLines(fields[models.FieldAddressLines]),
	}

	if r.Organisation == "" && r.Department == "" && r.Street1 == "" && r.Street2 == "" && len(r.AddressLines) > 0 {
		parts := normalizers.SplitAddressLines(r.AddressLines)
		r.Organisation = parts.Organisation
		r.Department = parts.Department
		r.Street1 = parts.Street1
		r.Street2 = parts.Street2
	}
	if len(r.AddressLines) == 0 {
		r.AddressLines = nonBlank(r.Organisation, r.Department, r.Street1, r.Street2)
	}

	r.Name = get(models.FieldName)
	if r.Name == "" {
		r.Name = normalizers.CollapseWhitespace(strings.Join([]string{get(models.FieldTitle), r.FirstName, r.LastName}, " "))
	}
	return r
}

// addressLines accepts a list of values or a newline separated string.
func addressLines(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return nonBlank(t...)
	case []any:
		lines := make([]string, 0, len(t))
		for _, line := range t {
			lines = append(lines, normalizers.Coerce(line))
		}
		return nonBlank(lines...)
	default:
		return nonBlank(strings.Split(normalizers.Coerce(t), "\n")...)
	}
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
