package confidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

func TestScorer_DefaultBoundaries(t *testing.T) {
	s, err := NewScorer(DefaultTable())
	require.NoError(t, err)

	tests := []struct {
		name      string
		die, surv float64
		want      core.Tier
	}{
		{"exactly 0.90 is VeryHigh", 0.10, 0.90, core.TierVeryHigh},
		{"just below 0.90", 0.1001, 0.8999, core.TierHigh},
		{"exactly 0.80", 0.80, 0.20, core.TierHigh},
		{"exactly 0.70", 0.30, 0.70, core.TierMedium},
		{"exactly 0.60", 0.60, 0.40, core.TierLow},
		{"coin flip", 0.50, 0.50, core.TierVeryLow},
		{"degenerate", 0, 1, core.TierVeryHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.die, tt.surv))
		})
	}
}

func TestScorer_Monotonic(t *testing.T) {
	s, err := NewScorer(DefaultTable())
	require.NoError(t, err)

	prev := s.Tier(0.5)
	for i := 1; i <= 500; i++ {
		m := 0.5 + float64(i)*0.001
		cur := s.Tier(m)
		assert.GreaterOrEqual(t, int(cur), int(prev), "m=%v", m)
		prev = cur
	}
}

func TestScorer_SwappableTable(t *testing.T) {
	s, err := NewScorer(Table{
		Version: "v0",
		Thresholds: []Threshold{
			{Tier: core.TierVeryHigh, Min: 0.95},
			{Tier: core.TierMedium, Min: 0.75},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, core.TierMedium, s.Tier(0.90))
	assert.Equal(t, core.TierVeryLow, s.Tier(0.74))
	assert.Equal(t, "v0", s.Version())
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"empty", Table{Version: "x"}},
		{"not decreasing", Table{Version: "x", Thresholds: []Threshold{
			{Tier: core.TierHigh, Min: 0.8}, {Tier: core.TierLow, Min: 0.8},
		}}},
		{"tier order", Table{Version: "x", Thresholds: []Threshold{
			{Tier: core.TierLow, Min: 0.9}, {Tier: core.TierHigh, Min: 0.8},
		}}},
		{"out of range", Table{Version: "x", Thresholds: []Threshold{
			{Tier: core.TierVeryHigh, Min: 1.2},
		}}},
		{"very low listed", Table{Version: "x", Thresholds: []Threshold{
			{Tier: core.TierHigh, Min: 0.8}, {Tier: core.TierVeryLow, Min: 0.1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.table.Validate())
		})
	}
	assert.NoError(t, DefaultTable().Validate())
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(`
version: v3
thresholds:
  - {tier: VeryHigh, min: 0.85}
  - {tier: High, min: 0.75}
  - {tier: Medium, min: 0.65}
  - {tier: Low, min: 0.55}
`))
	require.NoError(t, err)
	assert.Equal(t, "v3", table.Version)
	require.Len(t, table.Thresholds, 4)
	assert.Equal(t, core.TierHigh, table.Thresholds[1].Tier)

	_, err = ParseTable([]byte("thresholds: []"))
	assert.Error(t, err)

	_, err = ParseTable([]byte("version: v\nthresholds:\n  - {tier: Bogus, min: 0.5}\n"))
	assert.Error(t, err)
}

func TestNode_Process(t *testing.T) {
	s, err := NewScorer(DefaultTable())
	require.NoError(t, err)
	n := &Node{Scorer: s}

	pctx := core.NewPredictContext("", nil)
	assert.Error(t, n.Process(context.Background(), pctx))

	pctx.Outcome = &core.Outcome{Label: 1, ProbDie: 0.18, ProbSurvive: 0.82, Source: core.SourceNative}
	require.NoError(t, n.Process(context.Background(), pctx))
	assert.True(t, pctx.Scored)
	assert.Equal(t, core.TierHigh, pctx.Tier)
	assert.Equal(t, DefaultVersion, pctx.Labels["confidence_table"].Value)
}
