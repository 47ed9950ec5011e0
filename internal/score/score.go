// Package score computes the weighted 0-100 migration readiness score from
// the outputs of every upstream phase. Scoring is purely computational: it
// reads reports and emits a new one, never mutating upstream artifacts.
package score

import (
	"fmt"
	"math"

	"github.com/stylr/migrate/internal/logger"
)

// Category weights. Fixed and additive; each check is capped at its own
// maximum so one category can never exceed its share.
const (
	WeightPipeline      = 20.0
	WeightUploads       = 25.0
	WeightRecords       = 20.0
	WeightAccessibility = 15.0
	WeightBusiness      = 10.0
	WeightCompression   = 10.0
)

// Status thresholds. Policy constants, reproduced exactly so reports stay
// comparable across runs.
const (
	SuccessThreshold = 85.0
	PartialThreshold = 70.0
)

// compressionCeiling is the percent size reduction at which the compression
// check earns full marks.
const compressionCeiling = 30.0

// Per-check status bars, as a fraction of the category maximum.
const (
	passedBar  = 0.9
	warningBar = 0.7
)

// CheckStatus is the tri-state outcome of one weighted check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

// MigrationStatus is the overall tri-state verdict.
type MigrationStatus string

const (
	StatusSuccess        MigrationStatus = "success"
	StatusPartialSuccess MigrationStatus = "partial_success"
	StatusFailed         MigrationStatus = "failed"
)

// Check is one weighted validation check result.
type Check struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Score    float64     `json:"score"`
	MaxScore float64     `json:"max_score"`
}

// Inputs carries the upstream phase outputs the scorer aggregates.
type Inputs struct {
	PipelineStepsCompleted int `json:"pipeline_steps_completed"`
	PipelineStepsTotal     int `json:"pipeline_steps_total"`

	UploadsAttempted int `json:"uploads_attempted"`
	UploadsSucceeded int `json:"uploads_succeeded"`

	RecordsAttempted int `json:"records_attempted"`
	RecordsCreated   int `json:"records_created"`

	// AccessibilitySampled / AccessibilityReachable come from a bounded
	// sample of migrated objects, not an exhaustive check.
	AccessibilitySampled   int `json:"accessibility_sampled"`
	AccessibilityReachable int `json:"accessibility_reachable"`

	// ServicesTotal and ServicesWithOnePreview feed the business-logic
	// compliance check: every service should carry exactly one preview image.
	ServicesTotal          int `json:"services_total"`
	ServicesWithOnePreview int `json:"services_with_one_preview"`

	// AverageCompressionRatio is the mean percent size reduction across
	// compressed assets.
	AverageCompressionRatio float64 `json:"average_compression_ratio"`
}

// Result is the final readiness report.
type Result struct {
	OverallScore    float64         `json:"overall_score"`
	Status          MigrationStatus `json:"status"`
	Checks          []Check         `json:"checks"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

// Scorer computes readiness reports.
type Scorer struct {
	log logger.Logger
}

// NewScorer creates a Scorer.
func NewScorer(log logger.Logger) *Scorer {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &Scorer{log: log.Module("score")}
}

// ratio returns num/den clamped to [0,1]; a zero denominator counts as full
// success because there was nothing to do.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 1
	}
	r := float64(num) / float64(den)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func statusFor(score, maxScore float64) CheckStatus {
	if maxScore <= 0 {
		return CheckPassed
	}
	switch frac := score / maxScore; {
	case frac >= passedBar:
		return CheckPassed
	case frac >= warningBar:
		return CheckWarning
	default:
		return CheckFailed
	}
}

func linearCheck(name string, num, den int, weight float64, format string) Check {
	r := ratio(num, den)
	score := r * weight
	return Check{
		Name:     name,
		Status:   statusFor(score, weight),
		Message:  fmt.Sprintf(format, num, den, r*100),
		Score:    score,
		MaxScore: weight,
	}
}

// Score aggregates all weighted checks into the readiness report.
func (s *Scorer) Score(in *Inputs) *Result {
	checks := []Check{
		linearCheck("pipeline_completion",
			in.PipelineStepsCompleted, in.PipelineStepsTotal,
			WeightPipeline, "%d of %d pipeline steps completed (%.1f%%)"),
		linearCheck("upload_success_rate",
			in.UploadsSucceeded, in.UploadsAttempted,
			WeightUploads, "%d of %d uploads succeeded (%.1f%%)"),
		linearCheck("record_success_rate",
			in.RecordsCreated, in.RecordsAttempted,
			WeightRecords, "%d of %d media records created (%.1f%%)"),
		linearCheck("storage_accessibility",
			in.AccessibilityReachable, in.AccessibilitySampled,
			WeightAccessibility, "%d of %d sampled objects reachable (%.1f%%)"),
		linearCheck("preview_compliance",
			in.ServicesWithOnePreview, in.ServicesTotal,
			WeightBusiness, "%d of %d services carry exactly one preview (%.1f%%)"),
		s.compressionCheck(in.AverageCompressionRatio),
	}

	result := &Result{Checks: checks}
	for i := range checks {
		result.OverallScore += checks[i].Score
		if checks[i].Status != CheckPassed {
			result.Recommendations = append(result.Recommendations,
				recommendationFor(&checks[i]))
		}
	}
	result.OverallScore = math.Round(result.OverallScore*10) / 10

	switch {
	case result.OverallScore >= SuccessThreshold:
		result.Status = StatusSuccess
	case result.OverallScore >= PartialThreshold:
		result.Status = StatusPartialSuccess
	default:
		result.Status = StatusFailed
	}

	s.log.Info("readiness score computed",
		logger.Float64("score", result.OverallScore),
		logger.String("status", string(result.Status)))

	return result
}

// compressionCheck scores effectiveness linearly up to a 30% size-reduction
// ceiling: min(max, round(ratio/3)).
func (s *Scorer) compressionCheck(avgRatio float64) Check {
	if avgRatio < 0 {
		avgRatio = 0
	}
	score := math.Round(avgRatio / (compressionCeiling / WeightCompression))
	if score > WeightCompression {
		score = WeightCompression
	}
	return Check{
		Name:     "compression_effectiveness",
		Status:   statusFor(score, WeightCompression),
		Message:  fmt.Sprintf("average size reduction %.1f%% (ceiling %.0f%%)", avgRatio, compressionCeiling),
		Score:    score,
		MaxScore: WeightCompression,
	}
}

// recommendationFor maps a below-bar check to its followup action.
func recommendationFor(c *Check) string {
	switch c.Name {
	case "pipeline_completion":
		return "re-run the incomplete pipeline steps before going live"
	case "upload_success_rate":
		return "inspect the upload error list and re-run the media step for failed assets"
	case "record_success_rate":
		return "review media record failures, likely foreign-key mismatches from earlier steps"
	case "storage_accessibility":
		return "verify storage credentials and bucket permissions, sampled objects are unreachable"
	case "preview_compliance":
		return "re-run preview selection, some services have zero or multiple preview images"
	case "compression_effectiveness":
		return "check the compression tool configuration, size reduction is below target"
	default:
		return fmt.Sprintf("investigate the %s check (%s)", c.Name, c.Status)
	}
}
