// Package notify raises the desktop record prompt.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/earshot/earshot/internal/config"
)

// Notifier delivers the record prompt to the user.
type Notifier interface {
	PromptRecord(processName string) error
}

// Noop swallows prompts; used when notifications are disabled and in tests.
type Noop struct{}

func (Noop) PromptRecord(string) error { return nil }

// Desktop raises a freedesktop notification through the session bus.
type Desktop struct {
	logger  *slog.Logger
	appName string
}

// New returns the notifier selected by configuration.
func New(logger *slog.Logger, cfg config.NotifyConfig) Notifier {
	if !cfg.Enable {
		return Noop{}
	}
	return &Desktop{logger: logger, appName: cfg.AppName}
}

// PromptRecord asks whether the detected call should be recorded.
func (d *Desktop) PromptRecord(processName string) error {
	title := d.appName + ": call detected"
	body := "Record this call? Run 'earshot start' to begin."
	if processName != "" {
		body = fmt.Sprintf("%s is in a call. Run 'earshot start' to record it.", processName)
	}
	if err := beeep.Notify(title, body, ""); err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	d.logger.Info("record prompt delivered", "process", processName)
	return nil
}
