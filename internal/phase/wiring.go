package phase

import (
	"github.com/stylr/migrate/internal/checkpoint"
	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/notify"
	"github.com/stylr/migrate/internal/observability"
	"github.com/stylr/migrate/internal/storage"
	"github.com/stylr/migrate/internal/store"
)

// FromSettings builds a fully wired Orchestrator from loaded settings. The
// CLI entry points all construct through here so every command gets the same
// component graph.
func FromSettings(settings *conf.Settings, log logger.Logger, force bool) (*Orchestrator, *observability.Metrics, error) {
	dataStore := store.New(settings, log)
	if dataStore == nil {
		return nil, nil, errors.Newf("no target database enabled").
			Component("phase").
			Category(errors.CategoryConfiguration).
			Build()
	}

	objects, err := storage.New(settings, log)
	if err != nil {
		return nil, nil, err
	}

	checkpoints, err := checkpoint.NewFileStore(settings.Checkpoint.Dir)
	if err != nil {
		return nil, nil, err
	}

	metrics := observability.NewMetrics()

	orch := New(Options{
		Settings:    settings,
		Log:         log,
		Store:       dataStore,
		Objects:     objects,
		Checkpoints: checkpoints,
		Metrics:     metrics,
		Notifier:    notify.New(&settings.Notify, log),
		Force:       force,
	})
	return orch, metrics, nil
}
