package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// nameSignalFloor is the combined name and email score below which a record with a
// person name is not compared any further.
const nameSignalFloor = 0.15

// Scorer combines the field scorers into one similarity score per pair of records.
type Scorer struct {
	config Config
}

// NewScorer creates a scorer using the given ratio limits.
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.config
}

// normalize applies the field's normalizer chain. Fields missing from the configuration use
// the default chain.
func (s *Scorer) normalize(field, value string) string {
	chain, ok := s.config.Normalizers[field]
	if !ok {
		chain = defaultNormalizers[field]
	}
	return normalizers.ApplyChain(value, chain...)
}

// Breakdown holds the contribution of every field to a similarity score.
type Breakdown struct {
	Name           float64 `json:"name"`
	Email          float64 `json:"email"`
	Country        float64 `json:"country"`
	City           float64 `json:"city"`
	Organisation   float64 `json:"organisation"`
	Department     float64 `json:"department"`
	Address        float64 `json:"address"`
	NoName         bool    `json:"no_name"`
	ShortCircuited bool    `json:"short_circuited"`
	Total          float64 `json:"total"`
}

// Similar returns the similarity score of a and b. The score is not bounded above;
// callers compare it against a threshold.
func (s *Scorer) Similar(a, b models.ContactRecord) float64 {
	return s.Explain(a, b).Total
}

// Explain scores a and b and reports every field contribution.
//
// Records where neither side carries a person name are treated as organisations:
// their address, organisation and location fields are always consulted and weigh
// more. Records with a name need at least a weak name or email match before the
// other fields count.
func (s *Scorer) Explain(a, b models.ContactRecord) Breakdown {
	var bd Breakdown

	bd.Name = s.SimilarName(a, b)
	bd.Email = s.SimilarEmail(a, b)
	r := bd.Name + bd.Email

	bd.NoName = !a.HasPersonName() && !b.HasPersonName()
	if !bd.NoName && r < nameSignalFloor {
		bd.ShortCircuited = true
		bd.Total = r
		return bd
	}

	bd.Country = s.SimilarCountry(a, b, bd.NoName)
	bd.City = s.SimilarCity(a, b, bd.NoName)
	bd.Organisation = s.SimilarOrganisation(a, b, bd.NoName)
	bd.Department = s.SimilarDepartment(a, b)
	bd.Address = s.SimilarAddress(a, b, bd.NoName)

	bd.Total = r + bd.Country + bd.City + bd.Organisation + bd.Department + bd.Address
	return bd
}
