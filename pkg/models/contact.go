package models

import (
	"strings"
	"time"
)

// Field names understood by ContactRecord.Field and by imported field dictionaries.
const (
	FieldName         = "name"
	FieldTitle        = "title"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldOrganisation = "organisation"
	FieldDepartment   = "department"
	FieldStreet1      = "street_1"
	FieldStreet2      = "street_2"
	FieldCity         = "city"
	FieldCountry      = "country"
	FieldEmail        = "email"
	FieldSecondEmail  = "second_email"
	FieldThirdEmail   = "third_email"
	FieldAddressLines = "address_lines"
)

// Contact is a row of the contacts table.
type Contact struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Position     string     `json:"position" db:"position"`
	Organisation string     `json:"organisation" db:"organisation"`
	Department   string     `json:"department" db:"department"`
	Street1      string     `json:"street_1" db:"street_1"`
	Street2      string     `json:"street_2" db:"street_2"`
	Zip          string     `json:"zip" db:"zip"`
	City         string     `json:"city" db:"city"`
	Country      string     `json:"country" db:"country"`
	Email        string     `json:"email" db:"email"`
	SecondEmail  string     `json:"second_email" db:"second_email"`
	ThirdEmail   string     `json:"third_email" db:"third_email"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ContactRecord is the normalized shape of a contact used for similarity scoring.
// A blank string means the field is absent and carries no signal.
type ContactRecord struct {
	ID           string   `json:"id" msgpack:"id"`
	Name         string   `json:"name,omitempty" msgpack:"name"`
	FirstName    string   `json:"first_name,omitempty" msgpack:"first_name"`
	LastName     string   `json:"last_name,omitempty" msgpack:"last_name"`
	Organisation string   `json:"organisation,omitempty" msgpack:"organisation"`
	Department   string   `json:"department,omitempty" msgpack:"department"`
	Street1      string   `json:"street_1,omitempty" msgpack:"street_1"`
	Street2      string   `json:"street_2,omitempty" msgpack:"street_2"`
	City         string   `json:"city,omitempty" msgpack:"city"`
	Country      string   `json:"country,omitempty" msgpack:"country"`
	Email        string   `json:"email,omitempty" msgpack:"email"`
	SecondEmail  string   `json:"second_email,omitempty" msgpack:"second_email"`
	ThirdEmail   string   `json:"third_email,omitempty" msgpack:"third_email"`
	AddressLines []string `json:"address_lines,omitempty" msgpack:"address_lines"`
}

// Field returns the value of a named field and whether it is present (non-blank).
// Unknown field names are reported as absent.
func (r ContactRecord) Field(name string) (string, bool) {
	var v string
	switch name {
	case FieldName:
		v = r.Name
	case FieldFirstName:
		v = r.FirstName
	case FieldLastName:
		v = r.LastName
	case FieldOrganisation:
		v = r.Organisation
	case FieldDepartment:
		v = r.Department
	case FieldStreet1:
		v = r.Street1
	case FieldStreet2:
		v = r.Street2
	case FieldCity:
		v = r.City
	case FieldCountry:
		v = r.Country
	case FieldEmail:
		v = r.Email
	case FieldSecondEmail:
		v = r.SecondEmail
	case FieldThirdEmail:
		v = r.ThirdEmail
	default:
		return "", false
	}
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Emails returns the non-blank email addresses of the record.
func (r ContactRecord) Emails() []string {
	emails := make([]string, 0, 3)
	for _, f := range []string{FieldEmail, FieldSecondEmail, FieldThirdEmail} {
		if v, ok := r.Field(f); ok {
			emails = append(emails, v)
		}
	}
	return emails
}

// HasPersonName reports whether the record carries a first or last name.
func (r ContactRecord) HasPersonName() bool {
	_, first := r.Field(FieldFirstName)
	_, last := r.Field(FieldLastName)
	return first || last
}

// ContactUpdate holds new values for contact columns keyed by column name.
type ContactUpdate map[string]string

// UpdatableContactFields are the columns a ContactUpdate may change.
var UpdatableContactFields = map[string]struct{}{
	FieldTitle: {}, FieldFirstName: {}, FieldLastName: {}, "position": {}, FieldOrganisation: {},
	FieldDepartment: {}, FieldStreet1: {}, FieldStreet2: {}, "zip": {}, FieldCity: {}, FieldCountry: {},
	FieldEmail: {}, FieldSecondEmail: {}, FieldThirdEmail: {},
}
