// Package analyzer derives rolling trends and an overall health
// classification from a project's snapshot history.
package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/calculator"
	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/history"
	"github.com/p-blackswan/project-health/internal/models"
)

const (
	// minGapDays is the smallest snapshot spacing used for a rate.
	minGapDays = 0.1

	trendPoints = 3

	overallThreshold = 0.5

	healthyBlockedPct = 20
	atRiskBlockedPct  = 50

	epsilon = 1e-9
)

// Analyzer appends snapshots to the history store and analyses them.
type Analyzer struct {
	history *history.Store
	calc    *calculator.Calculator
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer backed by h. calc builds snapshots in UpdateHistory.
func New(h *history.Store, calc *calculator.Calculator, logger zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		history: h,
		calc:    calc,
		now:     time.Now,
		logger:  logger.With().Str("component", "analyzer").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// History exposes the backing store.
func (a *Analyzer) History() *history.Store { return a.history }

// UpdateHistory appends one snapshot per project. Projects that fail are
// reported and skipped; the rest are still recorded.
func (a *Analyzer) UpdateHistory(projects map[string]*models.Project) []error {
	snaps := make(map[string]models.Snapshot, len(projects))
	for name, p := range projects {
		if p == nil {
			continue
		}
		snaps[name] = a.calc.Snapshot(p)
	}
	return a.Record(snaps)
}

// Record appends pre-built snapshots keyed by project name.
func (a *Analyzer) Record(snaps map[string]models.Snapshot) []error {
	names := make([]string, 0, len(snaps))
	for name := range snaps {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := a.history.Append(name, snaps[name]); err != nil {
			level := a.logger.Warn()
			if !errors.Is(err, perrors.ErrNonMonotonic) {
				level = a.logger.Error()
			}
			level.Err(err).Str("project", name).Msg("snapshot not recorded")
			errs = append(errs, &perrors.ProjectError{Project: name, Component: "history", Message: err.Error()})
		}
	}
	return errs
}

// AnalyzeTrends analyses the named project's history. Fewer than two
// snapshots yield an insufficient_data report.
func (a *Analyzer) AnalyzeTrends(project string) *TrendReport {
	snaps := a.history.Get(project)
	report := &TrendReport{
		ProjectName: project,
		DataPoints:  len(snaps),
		GeneratedAt: a.now(),
	}
	if len(snaps) < 2 {
		report.Status = StatusInsufficientData
		report.Message = fmt.Sprintf("need at least 2 snapshots, have %d", len(snaps))
		return report
	}
	report.Status = StatusOK

	report.Velocity = rateTrend(velocityRates(snaps))
	report.Burndown = rateTrend(burndownRates(snaps))
	report.Blocking = blockingTrend(snaps)
	report.EstimatedCompletion = estimateCompletion(snaps[len(snaps)-1], report.Velocity, report.Burndown)
	report.Overall = overall(report.Velocity, report.Burndown, report.Blocking)
	report.Health = classify(report.Velocity, report.Burndown, report.Blocking)
	return report
}

// velocityRates is tasks completed per day between usable snapshot pairs.
// A drop in completed tasks is treated as a data error and skipped.
func velocityRates(snaps []models.Snapshot) []float64 {
	var rates []float64
	for i := 1; i < len(snaps); i++ {
		gap := models.Days(snaps[i].Timestamp.Sub(snaps[i-1].Timestamp))
		if gap < minGapDays {
			continue
		}
		delta := snaps[i].CompletedTasks - snaps[i-1].CompletedTasks
		if delta < 0 {
			continue
		}
		rates = append(rates, float64(delta)/gap)
	}
	return rates
}

// burndownRates is percentage points of remaining work burned per day.
func burndownRates(snaps []models.Snapshot) []float64 {
	var rates []float64
	for i := 1; i < len(snaps); i++ {
		gap := models.Days(snaps[i].Timestamp.Sub(snaps[i-1].Timestamp))
		if gap < minGapDays {
			continue
		}
		prev := 100 - snaps[i-1].CompletionPercentage
		cur := 100 - snaps[i].CompletionPercentage
		if cur > prev {
			continue
		}
		rates = append(rates, (prev-cur)/gap)
	}
	return rates
}

func rateTrend(rates []float64) *RateTrend {
	rt := &RateTrend{Label: TrendStable, Rates: rates}
	if rt.Rates == nil {
		rt.Rates = []float64{}
	}
	if len(rates) == 0 {
		return rt
	}
	rt.Current = rates[len(rates)-1]
	rt.Average = mean(rates)
	if len(rates) >= trendPoints {
		rt.Trend = mean(rates[len(rates)-trendPoints:]) - rt.Average
	}
	switch {
	case rt.Trend > epsilon:
		rt.Label = TrendImproving
	case rt.Trend < -epsilon:
		rt.Label = TrendDeclining
	}
	return rt
}

func blockingTrend(snaps []models.Snapshot) *BlockingTrend {
	series := make([]float64, len(snaps))
	for i, s := range snaps {
		if s.ActiveTasks > 0 {
			series[i] = float64(s.BlockedTasks) * 100 / float64(s.ActiveTasks)
		}
	}
	bt := &BlockingTrend{Label: TrendStable, Series: series, Current: series[len(series)-1]}
	if len(series) >= trendPoints {
		bt.Trend = mean(series[len(series)-trendPoints:]) - mean(series[:trendPoints])
	}
	switch {
	case bt.Trend > epsilon:
		bt.Label = TrendWorsening
	case bt.Trend < -epsilon:
		bt.Label = TrendImproving
	}
	return bt
}

func estimateCompletion(last models.Snapshot, velocity, burndown *RateTrend) *CompletionEstimate {
	est := &CompletionEstimate{
		RemainingPercent: 100 - last.CompletionPercentage,
		Confidence:       ConfidenceLow,
	}
	if est.RemainingPercent <= epsilon {
		at := last.Timestamp
		est.Date = &at
		est.RemainingPercent = 0
		est.Confidence = ConfidenceHigh
		return est
	}

	if burndown.Average > epsilon {
		d := models.AddDays(last.Timestamp, est.RemainingPercent/burndown.Average)
		est.BurndownDate = &d
	}
	remainingTasks := last.TotalTasks - last.CompletedTasks
	if velocity.Average > epsilon && remainingTasks > 0 {
		d := models.AddDays(last.Timestamp, float64(remainingTasks)/velocity.Average)
		est.VelocityDate = &d
	}

	switch {
	case est.BurndownDate != nil && est.VelocityDate != nil:
		mid := est.BurndownDate.Add(est.VelocityDate.Sub(*est.BurndownDate) / 2)
		est.Date = &mid
		if velocity.Trend >= 0 && burndown.Trend >= 0 {
			est.Confidence = ConfidenceHigh
		}
	case est.BurndownDate != nil:
		est.Date = est.BurndownDate
		est.Confidence = ConfidenceMedium
	case est.VelocityDate != nil:
		est.Date = est.VelocityDate
		est.Confidence = ConfidenceMedium
	}
	return est
}

func overall(velocity, burndown *RateTrend, blocking *BlockingTrend) *OverallTrend {
	score := velocity.Trend*5 + burndown.Trend*5 - blocking.Trend*0.2
	ot := &OverallTrend{Score: score, Label: TrendStable}
	switch {
	case score > overallThreshold:
		ot.Label = TrendImproving
	case score < -overallThreshold:
		ot.Label = TrendDeclining
	}
	return ot
}

func classify(velocity, burndown *RateTrend, blocking *BlockingTrend) HealthStatus {
	switch {
	case velocity.Current > 0 && burndown.Current > 0 && blocking.Current < healthyBlockedPct:
		return HealthHealthy
	case velocity.Current == 0 || burndown.Current == 0 || blocking.Current > atRiskBlockedPct:
		return HealthAtRisk
	default:
		return HealthNeedsAttention
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
