// Package escalation notifies humans about alerts that need attention.
package escalation

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/models"
)

// Escalation is a notification to a human.
type Escalation struct {
	Severity models.Severity
	Title    string
	Message  string
	Project  string
	Source   string   // alert type or subsystem that triggered it
	Actions  []string // suggested next steps
	Error    error    // underlying error, if any
}

// FromAlert builds the escalation for an alert.
func FromAlert(a models.Alert) Escalation {
	return Escalation{
		Severity: a.Severity,
		Title:    a.Title,
		Message:  a.Description,
		Project:  a.ProjectName,
		Source:   string(a.AlertType),
		Actions:  a.SuggestedActions,
	}
}

// Notifier sends escalation notifications.
type Notifier interface {
	Notify(ctx context.Context, e Escalation) error
}

// MultiNotifier fans out to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(ns ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: ns}
}

// Notify calls every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, e Escalation) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier logs escalations.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "escalation").Logger()}
}

func (l *LogNotifier) Notify(_ context.Context, e Escalation) error {
	ev := l.logger.Warn()
	if e.Severity == models.SeverityCritical {
		ev = l.logger.Error()
	}
	ev.Str("severity", string(e.Severity)).
		Str("project", e.Project).
		Str("source", e.Source).
		Str("title", e.Title).
		Err(e.Error).
		Msg(e.Message)
	return nil
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "🚨"
	case models.SeverityHigh:
		return "🔴"
	case models.SeverityMedium:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// truncate shortens s to max runes, appending "…" if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
