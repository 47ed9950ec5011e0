package phase

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Summary is the human-facing outcome of one run, printed to the console and
// mirrored in the checkpoint directory's JSON artifacts.
type Summary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	FailedStep string        `json:"failed_step,omitempty"`
	Error      string        `json:"error,omitempty"`

	Identities     int `json:"identities"`
	Conflicts      int `json:"conflicts"`
	UsersPersisted int `json:"users_persisted"`
	UsersFailed    int `json:"users_failed"`

	MediaAttempted int `json:"media_attempted"`
	MediaUploaded  int `json:"media_uploaded"`
	MediaSkipped   int `json:"media_skipped"`
	RecordsCreated int `json:"records_created"`

	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

func (o *Orchestrator) buildSummary(started time.Time, failedStep string, err error) *Summary {
	s := &Summary{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		Duration:   time.Since(started).Round(time.Millisecond),
		FailedStep: failedStep,
	}
	if err != nil {
		s.Error = err.Error()
	}

	if c := o.state.consolidation; c != nil {
		s.Identities = len(c.Identities)
		s.Conflicts = len(c.Conflicts)
	}
	s.UsersPersisted = o.state.userResult.SuccessCount
	s.UsersFailed = o.state.userResult.ErrorCount

	if r := o.state.mediaReport; r != nil {
		s.MediaAttempted = r.Attempted
		s.MediaUploaded = r.UploadedCount
		s.MediaSkipped = len(r.Skipped)
		s.RecordsCreated = r.RecordsCreated
	}
	if sc := o.state.scoreResult; sc != nil {
		s.Score = sc.OverallScore
		s.Status = string(sc.Status)
	}
	return s
}

// glyph returns the status marker for the printed summary.
func (s *Summary) glyph() string {
	switch {
	case s.Error != "":
		return "✗"
	case s.Status == "success":
		return "✓"
	case s.Status == "partial_success":
		return "~"
	default:
		return "✗"
	}
}

func pct(num, den int) float64 {
	if den == 0 {
		return 100
	}
	return float64(num) / float64(den) * 100
}

// Print writes the human-readable run summary.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n%s migration run %s (%s)\n", s.glyph(), s.RunID, s.Duration)
	if s.Error != "" {
		fmt.Fprintf(w, "  failed at step %q: %s\n", s.FailedStep, s.Error)
	}
	fmt.Fprintf(w, "  identities: %d consolidated (%d conflicts resolved)\n", s.Identities, s.Conflicts)
	fmt.Fprintf(w, "  users:      %d persisted, %d failed (%.1f%%)\n",
		s.UsersPersisted, s.UsersFailed, pct(s.UsersPersisted, s.UsersPersisted+s.UsersFailed))
	fmt.Fprintf(w, "  media:      %d/%d uploaded, %d skipped, %d records created\n",
		s.MediaUploaded, s.MediaAttempted, s.MediaSkipped, s.RecordsCreated)
	if s.Status != "" {
		fmt.Fprintf(w, "  readiness:  %.1f/100 (%s)\n", s.Score, s.Status)
	}
}

// ExitCode implements the process exit policy: partial success still exits
// zero, unrecoverable failures and a failed readiness verdict do not.
func (s *Summary) ExitCode() int {
	if s.Error != "" {
		return 1
	}
	if s.Status == "failed" {
		return 1
	}
	return 0
}
