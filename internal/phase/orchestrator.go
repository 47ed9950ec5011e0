// Package phase sequences the migration steps: extract, consolidate, persist,
// media and score. Each step reads its checkpoint inputs once at start and
// writes its output once at end; steps never run concurrently against the
// same checkpoint directory.
package phase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/checkpoint"
	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/extract"
	"github.com/stylr/migrate/internal/identity"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/media"
	"github.com/stylr/migrate/internal/notify"
	"github.com/stylr/migrate/internal/observability"
	"github.com/stylr/migrate/internal/score"
	"github.com/stylr/migrate/internal/storage"
	"github.com/stylr/migrate/internal/store"
)

// Checkpoint keys, one per step output. Downstream steps key-match on the
// payload field names inside these documents, so both the keys and the
// serialized shapes are stable contracts.
const (
	KeyConsolidatedUsers = "users_consolidated"
	KeyConflicts         = "duplicate_conflicts"
	KeyPersistedUsers    = "users_persisted"
	KeyPersistedServices = "services_persisted"
	KeyPersistedMessages = "messages_persisted"
	KeyMediaReport       = "media_report"
	KeyScoreReport       = "score_report"
)

// Orchestrator wires the migration components and runs the step sequence.
type Orchestrator struct {
	settings    *conf.Settings
	log         logger.Logger
	store       store.Interface
	objects     storage.ObjectStore
	checkpoints checkpoint.Store
	metrics     *observability.Metrics
	notifier    *notify.Notifier
	force       bool

	state runState
}

// runState accumulates in-memory step outputs across one run.
type runState struct {
	dump          *extract.Dump
	consolidation *identity.ConsolidationResult
	userResult    batch.Result[store.User, store.User]
	keys          media.KeyMap
	mediaReport   *media.Report
	scoreResult   *score.Result

	stepsCompleted int
	stepsTotal     int
}

// Options carries the orchestrator's collaborators and run flags.
type Options struct {
	Settings    *conf.Settings
	Log         logger.Logger
	Store       store.Interface
	Objects     storage.ObjectStore
	Checkpoints checkpoint.Store
	Metrics     *observability.Metrics
	Notifier    *notify.Notifier
	// Force recomputes every step even when its checkpoint already exists.
	Force bool
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &Orchestrator{
		settings:    opts.Settings,
		log:         log.Module("phase"),
		store:       opts.Store,
		objects:     opts.Objects,
		checkpoints: opts.Checkpoints,
		metrics:     opts.Metrics,
		notifier:    opts.Notifier,
		force:       opts.Force,
	}
}

// writeConfigSnapshot stores the sanitized settings next to the checkpoints
// so a run report never has to guess what configuration produced it. Failure
// is logged, never fatal.
func (o *Orchestrator) writeConfigSnapshot() {
	data, err := o.settings.SanitizedYAML()
	if err != nil {
		o.log.Warn("rendering config snapshot failed", logger.Error(err))
		return
	}
	path := filepath.Join(o.settings.Checkpoint.Dir, "run_config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		o.log.Warn("writing config snapshot failed",
			logger.String("path", path), logger.Error(err))
	}
}

// step is one named unit of the run sequence.
type step struct {
	name string
	run  func(context.Context) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{"extract", o.stepExtract},
		{"consolidate", o.stepConsolidate},
		{"persist_users", o.stepPersistUsers},
		{"persist_related", o.stepPersistRelated},
		{"media", o.stepMedia},
		{"score", o.stepScore},
	}
}

// Run executes preflight and every step in order, halting on the first
// unrecoverable failure. A summary is returned even on failure so callers
// can print what happened before exiting non-zero.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	return o.RunThrough(ctx, "")
}

// RunThrough runs the step sequence up to and including lastStep; an empty
// lastStep runs everything. Earlier steps resume from their checkpoints
// unless the force flag recomputes them.
func (o *Orchestrator) RunThrough(ctx context.Context, lastStep string) (*Summary, error) {
	started := time.Now()

	if err := o.Preflight(ctx); err != nil {
		return nil, err
	}
	o.writeConfigSnapshot()
	defer func() {
		if err := o.store.Close(); err != nil {
			o.log.Warn("closing store", logger.Error(err))
		}
	}()

	steps := o.steps()
	if lastStep != "" {
		for i := range steps {
			if steps[i].name == lastStep {
				steps = steps[:i+1]
				break
			}
		}
	}
	o.state.stepsTotal = len(steps)

	for _, s := range steps {
		stepStart := time.Now()
		o.log.Info("step starting", logger.String("step", s.name))

		err := s.run(ctx)
		elapsed := time.Since(stepStart)
		if o.metrics != nil {
			o.metrics.StepDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
		}

		if err != nil {
			o.log.Error("step failed",
				logger.String("step", s.name),
				logger.Duration("elapsed", elapsed),
				logger.Error(err))
			summary := o.buildSummary(started, s.name, err)
			return summary, err
		}

		o.state.stepsCompleted++
		o.log.Info("step complete",
			logger.String("step", s.name),
			logger.Duration("elapsed", elapsed))
	}

	summary := o.buildSummary(started, "", nil)
	if o.notifier != nil && o.state.scoreResult != nil {
		o.notifier.SendRunSummary(summary.RunID,
			o.state.scoreResult.OverallScore, string(o.state.scoreResult.Status))
	}
	return summary, nil
}
