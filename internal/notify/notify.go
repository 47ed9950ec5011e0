// Package notify sends the run-completion notification through a shoutrrr
// service URL.
package notify

import (
	"fmt"
	"io"
	stdlog "log"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
)

// Notifier sends human-facing run summaries. Disabled notifiers are no-ops so
// callers never need to branch.
type Notifier struct {
	enabled bool
	sender  *router.ServiceRouter
	log     logger.Logger
}

// New creates a Notifier from settings. A bad service URL disables the
// notifier with a warning rather than failing the run.
func New(settings *conf.NotifySettings, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	log = log.Module("notify")

	n := &Notifier{log: log}
	if !settings.Enabled || settings.URL == "" {
		return n
	}

	sender, err := shoutrrr.CreateSender(settings.URL)
	if err != nil {
		log.Warn("invalid notification URL, notifications disabled", logger.Error(err))
		return n
	}
	sender.SetLogger(stdlog.New(io.Discard, "", 0))

	n.enabled = true
	n.sender = sender
	return n
}

// Send delivers one message. Notification failure is logged but never fails
// the migration run.
func (n *Notifier) Send(title, message string) {
	if !n.enabled {
		return
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			n.log.Warn("notification delivery failed", logger.Error(err))
			return
		}
	}
	n.log.Debug("notification sent")
}

// SendRunSummary formats and sends the final run summary.
func (n *Notifier) SendRunSummary(runID string, score float64, status string) {
	n.Send("migration run finished",
		fmt.Sprintf("run %s: score %.1f (%s)", runID, score, status))
}
