package phase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryExitCodePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary Summary
		want    int
	}{
		{"success exits zero", Summary{Status: "success"}, 0},
		{"partial success still exits zero", Summary{Status: "partial_success"}, 0},
		{"failed verdict exits one", Summary{Status: "failed"}, 1},
		{"step error exits one", Summary{Error: "persist_users: boom", FailedStep: "persist_users"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.summary.ExitCode())
		})
	}
}

func TestSummaryPrint(t *testing.T) {
	t.Parallel()

	s := Summary{
		RunID:          "run-1",
		Identities:     120,
		Conflicts:      4,
		UsersPersisted: 118,
		UsersFailed:    2,
		MediaAttempted: 50,
		MediaUploaded:  48,
		MediaSkipped:   3,
		RecordsCreated: 48,
		Score:          91.5,
		Status:         "success",
	}

	var sb strings.Builder
	s.Print(&sb)
	out := sb.String()

	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "120 consolidated (4 conflicts resolved)")
	assert.Contains(t, out, "118 persisted, 2 failed")
	assert.Contains(t, out, "48/50 uploaded, 3 skipped")
	assert.Contains(t, out, "91.5/100 (success)")
}

func TestSummaryPrintFailure(t *testing.T) {
	t.Parallel()

	s := Summary{RunID: "run-2", FailedStep: "media", Error: "storage unreachable"}

	var sb strings.Builder
	s.Print(&sb)
	out := sb.String()

	assert.Contains(t, out, "✗")
	assert.Contains(t, out, `failed at step "media": storage unreachable`)
}
