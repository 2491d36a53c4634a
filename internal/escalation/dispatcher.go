package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/dedup"
	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/retry"
)

// Outcome labels passed to an OutcomeRecorder.
const (
	OutcomeSent       = "sent"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

const defaultDedupCapacity = 4096

// OutcomeRecorder counts notification outcomes.
type OutcomeRecorder interface {
	RecordNotification(outcome string)
}

// DispatcherConfig controls which alerts are escalated.
type DispatcherConfig struct {
	MinSeverity models.Severity
	DedupWindow time.Duration
	Retry       retry.Config
}

// Dispatcher escalates a cycle's alerts at or above a severity, at most
// once per alert fingerprint per window.
type Dispatcher struct {
	notifier Notifier
	cfg      DispatcherConfig
	seen     *dedup.Window[string]
	recorder OutcomeRecorder
	now      func() time.Time
	logger   zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source used for de-duplication.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r OutcomeRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher creates a Dispatcher. An empty MinSeverity means high.
func NewDispatcher(n Notifier, cfg DispatcherConfig, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = models.SeverityHigh
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	d := &Dispatcher{
		notifier: n,
		cfg:      cfg,
		seen:     dedup.New[string](defaultDedupCapacity, cfg.DedupWindow),
		now:      time.Now,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
	if d.cfg.Retry.OnRetry == nil {
		d.cfg.Retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			d.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("notification failed, retrying")
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleCycle escalates the cycle's qualifying alerts. A failed alert is
// forgotten so the next cycle tries it again.
func (d *Dispatcher) HandleCycle(ctx context.Context, res *engine.CycleResult) error {
	var errs []error
	sent := 0
	for _, a := range res.Alerts {
		if !a.Severity.AtLeast(d.cfg.MinSeverity) {
			continue
		}
		key := a.Fingerprint()
		if !d.seen.Allow(key, d.now()) {
			d.record(OutcomeSuppressed)
			continue
		}
		if err := d.send(ctx, FromAlert(a)); err != nil {
			d.seen.Forget(key)
			d.record(OutcomeFailed)
			d.logger.Error().Err(err).Str("alert_id", a.ID).Msg("escalation failed")
			errs = append(errs, fmt.Errorf("alert %s: %w", a.ID, err))
			continue
		}
		d.record(OutcomeSent)
		sent++
	}
	if sent > 0 {
		d.logger.Info().Str("cycle_id", res.ID).Int("sent", sent).Msg("alerts escalated")
	}
	return errors.Join(errs...)
}

// HandleCycleFailure escalates a cycle that produced no result.
func (d *Dispatcher) HandleCycleFailure(ctx context.Context, err error) {
	if !d.seen.Allow("cycle_failure", d.now()) {
		d.record(OutcomeSuppressed)
		return
	}
	e := Escalation{
		Severity: models.SeverityHigh,
		Title:    "Project health monitoring cycle failed",
		Message:  "No metrics or alerts were produced for this cycle.",
		Source:   "monitor",
		Error:    err,
	}
	if serr := d.send(ctx, e); serr != nil {
		d.seen.Forget("cycle_failure")
		d.record(OutcomeFailed)
		d.logger.Error().Err(serr).Msg("cycle failure escalation failed")
		return
	}
	d.record(OutcomeSent)
}

func (d *Dispatcher) send(ctx context.Context, e Escalation) error {
	return retry.Do(ctx, d.cfg.Retry, func(ctx context.Context) error {
		return d.notifier.Notify(ctx, e)
	})
}

func (d *Dispatcher) record(outcome string) {
	if d.recorder != nil {
		d.recorder.RecordNotification(outcome)
	}
}
