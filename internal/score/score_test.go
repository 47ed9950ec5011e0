package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perfectInputs() *Inputs {
	return &Inputs{
		PipelineStepsCompleted:  5,
		PipelineStepsTotal:      5,
		UploadsAttempted:        100,
		UploadsSucceeded:        100,
		RecordsAttempted:        100,
		RecordsCreated:          100,
		AccessibilitySampled:    20,
		AccessibilityReachable:  20,
		ServicesTotal:           10,
		ServicesWithOnePreview:  10,
		AverageCompressionRatio: 35,
	}
}

func TestScorePerfectRun(t *testing.T) {
	t.Parallel()

	result := NewScorer(nil).Score(perfectInputs())

	assert.Equal(t, 100.0, result.OverallScore)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Empty(t, result.Recommendations)
	require.Len(t, result.Checks, 6)

	var sum float64
	for i := range result.Checks {
		assert.Equal(t, CheckPassed, result.Checks[i].Status)
		sum += result.Checks[i].MaxScore
	}
	assert.Equal(t, 100.0, sum, "category maxima add to exactly 100")
}

func TestScoreStatusThresholds(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil)

	tests := []struct {
		name   string
		mutate func(*Inputs)
		want   MigrationStatus
	}{
		{"perfect is success", func(in *Inputs) {}, StatusSuccess},
		{
			// Losing the full compression share (10) and a slice of uploads
			// lands between 70 and 85.
			"partial success band",
			func(in *Inputs) {
				in.AverageCompressionRatio = 0
				in.UploadsSucceeded = 75
			},
			StatusPartialSuccess,
		},
		{
			"failed below 70",
			func(in *Inputs) {
				in.UploadsSucceeded = 20
				in.RecordsCreated = 20
				in.AverageCompressionRatio = 0
			},
			StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := perfectInputs()
			tt.mutate(in)
			result := scorer.Score(in)
			assert.Equal(t, tt.want, result.Status, "score was %.1f", result.OverallScore)
		})
	}
}

func TestScoreMonotonicity(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil)

	base := perfectInputs()
	base.UploadsSucceeded = 50
	baseScore := scorer.Score(base).OverallScore

	for succeeded := 51; succeeded <= 100; succeeded += 7 {
		in := perfectInputs()
		in.UploadsSucceeded = succeeded
		got := scorer.Score(in).OverallScore
		assert.GreaterOrEqual(t, got, baseScore,
			"raising the upload ratio must never lower the score")
		baseScore = got
	}
}

func TestCompressionCheckCeiling(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(nil)

	tests := []struct {
		ratio float64
		want  float64
	}{
		{0, 0},
		{3, 1},
		{15, 5},
		{30, 10},
		{90, 10}, // capped at the category maximum
		{-5, 0},
	}

	for _, tt := range tests {
		check := scorer.compressionCheck(tt.ratio)
		assert.Equal(t, tt.want, check.Score, "ratio %.0f", tt.ratio)
		assert.Equal(t, WeightCompression, check.MaxScore)
	}
}

func TestScoreEmptyDenominatorsCountAsSuccess(t *testing.T) {
	t.Parallel()

	// A run with no media at all should not be punished for it.
	in := &Inputs{
		PipelineStepsCompleted:  5,
		PipelineStepsTotal:      5,
		AverageCompressionRatio: 30,
	}
	result := NewScorer(nil).Score(in)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 100.0, result.OverallScore)
}

func TestScoreRecommendationsForBelowBarChecks(t *testing.T) {
	t.Parallel()

	in := perfectInputs()
	in.UploadsSucceeded = 40
	in.ServicesWithOnePreview = 3

	result := NewScorer(nil).Score(in)
	require.NotEmpty(t, result.Recommendations)

	joined := ""
	for _, r := range result.Recommendations {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "upload error list")
	assert.Contains(t, joined, "preview")
}
