package escalation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v float64) *float64 { return &v }

func TestDefaultRules(t *testing.T) {
	r := Default()
	assert.Equal(t, 0.10, r.Thresholds.Low)
	assert.Equal(t, 0.20, r.Thresholds.High)
	assert.Equal(t, "commercial_management", r.ManagementSectorCode)

	code := "commercial_discount_registration"
	other := "it_support"
	assert.True(t, r.Applies(&code))
	assert.False(t, r.Applies(&other))
	assert.False(t, r.Applies(nil))
}

func TestDecide(t *testing.T) {
	r := Default()
	cases := []struct {
		name   string
		amount *float64
		want   Outcome
	}{
		{"no amount", nil, OutcomeOpen},
		{"below low", amount(0.05), OutcomeManagement},
		{"at low", amount(0.10), OutcomeManagement},
		{"between", amount(0.15), OutcomeOpen},
		{"at high", amount(0.20), OutcomeOpen},
		{"above high", amount(0.25), OutcomeProprietors},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Decide(tc.amount))
		})
	}
}

func TestParseRejectsInvertedThresholds(t *testing.T) {
	_, err := Parse([]byte("thresholds:\n  low: 0.5\n  high: 0.1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("thresholds:\n  low: 0.1\n  high: 0.2\nrequest_type_codes: [x]\n"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := "thresholds:\n  low: 100\n  high: 500\nmanagement_sector_code: mgmt\nrequest_type_codes:\n  - discount\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mgmt", r.ManagementSectorCode)
	assert.Equal(t, OutcomeProprietors, r.Decide(amount(501)))
	assert.Equal(t, OutcomeOpen, r.Decide(amount(300)))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
