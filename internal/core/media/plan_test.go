package media

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanThreeSegments(t *testing.T) {
	spans, err := Plan(650*time.Second, 300*time.Second)
	require.NoError(t, err)

	assert.Equal(t, []Span{
		{Start: 0, Duration: 300 * time.Second},
		{Start: 300 * time.Second, Duration: 300 * time.Second},
		{Start: 600 * time.Second, Duration: 50 * time.Second},
	}, spans)
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		total time.Duration
		chunk time.Duration
		want  int
	}{
		{"empty input", 0, 300 * time.Second, 0},
		{"shorter than chunk", 42 * time.Second, 300 * time.Second, 1},
		{"exact multiple", 900 * time.Second, 300 * time.Second, 3},
		{"one millisecond over", 900*time.Second + time.Millisecond, 300 * time.Second, 4},
		{"rounds sub-millisecond noise", 900*time.Second + 200*time.Microsecond, 300 * time.Second, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := Plan(tt.total, tt.chunk)
			require.NoError(t, err)
			assert.Len(t, spans, tt.want)
		})
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	_, err := Plan(time.Minute, 0)
	assert.Error(t, err)
	_, err = Plan(time.Minute, -time.Second)
	assert.Error(t, err)
	_, err = Plan(-time.Second, time.Second)
	assert.Error(t, err)
}

// Spans must tile [0, total) with no gap and no overlap.
func TestPlanCoversInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		total := time.Duration(rng.Int64N(int64(3*time.Hour))).Round(time.Millisecond)
		chunk := time.Duration(1+rng.Int64N(600)) * time.Second

		spans, err := Plan(total, chunk)
		require.NoError(t, err)

		var next, sum time.Duration
		for _, sp := range spans {
			require.Equal(t, next, sp.Start, "gap or overlap at %s", sp.Start)
			require.Positive(t, sp.Duration)
			require.LessOrEqual(t, sp.Duration, chunk)
			next = sp.Start + sp.Duration
			sum += sp.Duration
		}
		assert.Equal(t, total, sum, "total=%s chunk=%s", total, chunk)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{300 * time.Second, "00:05:00.000"},
		{650*time.Second + 250*time.Millisecond, "00:10:50.250"},
		{2*time.Hour + 3*time.Minute + 4*time.Second + 5*time.Millisecond, "02:03:04.005"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
