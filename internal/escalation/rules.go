package escalation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Outcome is where an approved ticket goes next.
type Outcome int

const (
	OutcomeOpen Outcome = iota
	OutcomeManagement
	OutcomeProprietors
)

func (o Outcome) String() string {
	switch o {
	case OutcomeManagement:
		return "management"
	case OutcomeProprietors:
		return "proprietors"
	}
	return "open"
}

// Thresholds are in the unit of the stored ticket amount.
type Thresholds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Rules is the escalation table, keyed by request-type code.
type Rules struct {
	Thresholds           Thresholds `yaml:"thresholds"`
	ManagementSectorCode string     `yaml:"management_sector_code"`
	RequestTypeCodes     []string   `yaml:"request_type_codes"`
}

// Parse decodes and validates a rule table.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode escalation rules: %w", err)
	}
	if r.Thresholds.Low < 0 || r.Thresholds.High < r.Thresholds.Low {
		return nil, fmt.Errorf("escalation thresholds must satisfy 0 <= low <= high, got %v/%v", r.Thresholds.Low, r.Thresholds.High)
	}
	if len(r.RequestTypeCodes) > 0 && r.ManagementSectorCode == "" {
		return nil, fmt.Errorf("escalation rules need management_sector_code")
	}
	return &r, nil
}

// Default returns the embedded rule table.
func Default() *Rules {
	r, err := Parse(defaultRules)
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads the rule table at path, or the embedded default when path is empty.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read escalation rules: %w", err)
	}
	return Parse(data)
}

// Applies reports whether tickets of the request type with this code escalate.
func (r *Rules) Applies(code *string) bool {
	if code == nil {
		return false
	}
	for _, c := range r.RequestTypeCodes {
		if c == *code {
			return true
		}
	}
	return false
}

// Decide routes an approved ticket by amount. Tickets without an amount are released.
func (r *Rules) Decide(amount *float64) Outcome {
	switch {
	case amount == nil:
		return OutcomeOpen
	case *amount <= r.Thresholds.Low:
		return OutcomeManagement
	case *amount > r.Thresholds.High:
		return OutcomeProprietors
	}
	return OutcomeOpen
}
