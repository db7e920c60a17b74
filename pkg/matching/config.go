package matching

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// FieldAddress keys the normalizer chain applied to the joined street lines.
const FieldAddress = "address"

// defaultNormalizers are the normalizer chains applied to each field before comparison.
var defaultNormalizers = map[string][]string{
	models.FieldFirstName:    {"nname", "collapse_whitespace"},
	models.FieldLastName:     {"nname", "collapse_whitespace"},
	models.FieldEmail:        {"nemail"},
	models.FieldCountry:      {"prepare"},
	models.FieldCity:         {"prepare"},
	models.FieldOrganisation: {"prepare"},
	models.FieldDepartment:   {"prepare"},
	FieldAddress:             {"naddress"},
}

// Config holds the per-field ratio limits, the acceptance threshold and the names of the
// normalizers applied to each field.
type Config struct {
	NameRatio        float64 `yaml:"name_ratio" json:"name_ratio" validate:"gte=0,lte=1"`
	EmailRatio       float64 `yaml:"email_ratio" json:"email_ratio" validate:"gte=0,lte=1"`
	CityRatio        float64 `yaml:"city_ratio" json:"city_ratio" validate:"gte=0,lte=1"`
	OrgRatio         float64 `yaml:"org_ratio" json:"org_ratio" validate:"gte=0,lte=1"`
	DepartmentRatio  float64 `yaml:"department_ratio" json:"department_ratio" validate:"gte=0,lte=1"`
	AddressRatio     float64 `yaml:"address_ratio" json:"address_ratio" validate:"gte=0,lte=1"`
	OverallThreshold float64 `yaml:"overall_threshold" json:"overall_threshold" validate:"gte=0"`

	Normalizers map[string][]string `yaml:"normalizers" json:"normalizers"`
}

// DefaultConfig returns the tuned scoring configuration.
func DefaultConfig() Config {
	return Config{
		NameRatio:        0.8,
		EmailRatio:       0.95,
		CityRatio:        0.85,
		OrgRatio:         DefaultTextRatio,
		DepartmentRatio:  DefaultTextRatio,
		AddressRatio:     0.8,
		OverallThreshold: 0.75,
		Normalizers:      copyNormalizers(defaultNormalizers),
	}
}

func copyNormalizers(src map[string][]string) map[string][]string {
	dst := make(map[string][]string, len(src))
	for field, chain := range src {
		dst[field] = append([]string(nil), chain...)
	}
	return dst
}

var validate = validator.New()

// Validate checks that every ratio is within range and every normalizer is registered.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}

	fields := make([]string, 0, len(c.Normalizers))
	for field := range c.Normalizers {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, name := range c.Normalizers[field] {
			if _, ok := normalizers.Get(name); !ok {
				return fmt.Errorf("invalid matching config: unknown normalizer %q for field %s", name, field)
			}
		}
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file keep their default;
// a normalizers entry replaces the chain of that field only. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read matching config %s: %w", path, err)
	}
	var override struct {
		Normalizers map[string][]string `yaml:"normalizers"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse matching config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("failed to parse matching config %s: %w", path, err)
	}

	cfg.Normalizers = copyNormalizers(defaultNormalizers)
	for field, chain := range override.Normalizers {
		cfg.Normalizers[field] = chain
	}
	return cfg, cfg.Validate()
}
