package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Field weights. These are tuned constants; keep them as they are.
const (
	fullNameWeight    = 0.8
	initialNameWeight = 0.75
	lastNameWeight    = 0.4
	firstNameWeight   = 0.1

	emailBonus = 0.8

	countryBonus, countryBonusNoName           = 0.1, 0.2
	cityBonus, cityBonusNoName                 = 0.1, 0.2
	organisationBonus, organisationBonusNoName = 0.2, 0.4
	departmentBonus                            = 0.2
	addressWeight, addressWeightNoName         = 0.2, 0.4
)

// SimilarName scores the first and last names of a and b. The full name is tried
// first, then an initial against a spelled out first name ("S." vs "Samuel"), then
// the last name alone and finally the first name alone.
func (s *Scorer) SimilarName(a, b models.ContactRecord) float64 {
	firstA := s.field(a, models.FieldFirstName)
	firstB := s.field(b, models.FieldFirstName)
	lastA := s.field(a, models.FieldLastName)
	lastB := s.field(b, models.FieldLastName)

	if firstA != "" && firstB != "" && lastA != "" && lastB != "" {
		if shortA, shortB, ok := initialForms(firstA, firstB); ok {
			if r := Ratio(shortA+lastA, shortB+lastB); r > s.config.NameRatio {
				return initialNameWeight * r
			}
		} else if r := Ratio(firstA+lastA, firstB+lastB); r > s.config.NameRatio {
			return fullNameWeight * r
		}
	}

	if lastA != "" && lastB != "" {
		if r := Ratio(lastA, lastB); r > s.config.NameRatio {
			return lastNameWeight * r
		}
	}

	if firstA != "" && firstB != "" {
		if r := Ratio(firstA, firstB); r > s.config.NameRatio {
			return firstNameWeight * r
		}
	}

	return 0
}

// SimilarEmail returns the email bonus once if any address of a matches any address of b.
func (s *Scorer) SimilarEmail(a, b models.ContactRecord) float64 {
	for _, ea := range a.Emails() {
		na := s.normalize(models.FieldEmail, ea)
		for _, eb := range b.Emails() {
			nb := s.normalize(models.FieldEmail, eb)
			if na == "" || nb == "" {
				continue
			}
			if na == nb || SimilarText(na, nb, s.config.EmailRatio) {
				return emailBonus
			}
		}
	}
	return 0
}

// SimilarCountry compares the resolved country identifiers.
func (s *Scorer) SimilarCountry(a, b models.ContactRecord, noName bool) float64 {
	ca := s.field(a, models.FieldCountry)
	cb := s.field(b, models.FieldCountry)
	if ca == "" || cb == "" || ca != cb {
		return 0
	}
	if noName {
		return countryBonusNoName
	}
	return countryBonus
}

// SimilarCity compares city names.
func (s *Scorer) SimilarCity(a, b models.ContactRecord, noName bool) float64 {
	if !s.fieldMatches(a, b, models.FieldCity, s.config.CityRatio) {
		return 0
	}
	if noName {
		return cityBonusNoName
	}
	return cityBonus
}

// SimilarOrganisation compares organisation names.
func (s *Scorer) SimilarOrganisation(a, b models.ContactRecord, noName bool) float64 {
	if !s.fieldMatches(a, b, models.FieldOrganisation, s.config.OrgRatio) {
		return 0
	}
	if noName {
		return organisationBonusNoName
	}
	return organisationBonus
}

// SimilarDepartment compares department names.
func (s *Scorer) SimilarDepartment(a, b models.ContactRecord) float64 {
	if !s.fieldMatches(a, b, models.FieldDepartment, s.config.DepartmentRatio) {
		return 0
	}
	return departmentBonus
}

// SimilarAddress compares the street lines of a and b. Addresses weigh more for
// records without a person name.
func (s *Scorer) SimilarAddress(a, b models.ContactRecord, noName bool) float64 {
	addrA := s.streetAddress(a)
	addrB := s.streetAddress(b)
	if addrA == "" || addrB == "" {
		return 0
	}

	r := Ratio(addrA, addrB)
	if r <= s.config.AddressRatio {
		return 0
	}
	if noName {
		return addressWeightNoName * r
	}
	return addressWeight * r
}

func (s *Scorer) fieldMatches(a, b models.ContactRecord, field string, ratioLimit float64) bool {
	va := s.field(a, field)
	vb := s.field(b, field)
	if va == "" || vb == "" {
		return false
	}
	return va == vb || SimilarText(va, vb, ratioLimit)
}

// field returns the normalized value of a record field, or "" when it is absent.
func (s *Scorer) field(r models.ContactRecord, field string) string {
	v, ok := r.Field(field)
	if !ok {
		return ""
	}
	return s.normalize(field, v)
}

// streetAddress joins the street lines without a separator and normalizes the result.
func (s *Scorer) streetAddress(r models.ContactRecord) string {
	street1, _ := r.Field(models.FieldStreet1)
	street2, _ := r.Field(models.FieldStreet2)
	return s.normalize(FieldAddress, street1+street2)
}

// initialForms detects a first name given as an initial ("s" or "s.") on one side and
// spelled out on the other, starting with the same letter. It returns both first names
// with the spelled out one replaced by the initial.
func initialForms(a, b string) (string, string, bool) {
	switch {
	case isInitial(a) && !isInitial(b) && sameInitial(a, b):
		return a, a, true
	case isInitial(b) && !isInitial(a) && sameInitial(a, b):
		return b, b, true
	default:
		return a, b, false
	}
}

func isInitial(name string) bool {
	name = strings.TrimSuffix(name, ".")
	return utf8.RuneCountInString(name) == 1
}

func sameInitial(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	return ra == rb
}
