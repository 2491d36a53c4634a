package calculator

import (
	"math"
	"time"

	"github.com/p-blackswan/project-health/internal/models"
)

const (
	defaultLookback    = 30 * models.Day
	defaultProjectSpan = 90 * models.Day

	// onTrackTolerance is how far actual remaining work may exceed the ideal
	// line and still count as on track.
	onTrackTolerance = 1.1

	// maxIdealDays bounds the ideal line when an estimated end date runs away.
	maxIdealDays = 3650

	epsilon = 1e-9
)

func (c *Calculator) burndown(p *models.Project, now time.Time, total, remaining float64, v *VelocityMetrics) *BurndownMetrics {
	b := &BurndownMetrics{
		TotalPoints:     total,
		RemainingPoints: remaining,
	}

	b.StartDate = now.Add(-defaultLookback)
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}

	switch {
	case p.EndDate != nil:
		b.EndDate = *p.EndDate
	case v != nil && v.Average > 0:
		sprints := remaining / v.Average
		b.EndDate = now.Add(time.Duration(sprints * float64(c.sprintLength)))
		b.EndDateEstimated = true
	default:
		b.EndDate = b.StartDate.Add(defaultProjectSpan)
		b.EndDateEstimated = true
	}

	b.Ideal = idealLine(b.StartDate, b.EndDate, total)
	b.Actual = actualLine(p, now, total, remaining)
	b.IsOnTrack = isOnTrack(b)
	b.CompletionDateProjection = projectCompletion(b, now)
	return b
}

// idealLine decays total linearly to zero, one point per day.
func idealLine(start, end time.Time, total float64) []BurndownPoint {
	span := int(math.Ceil(models.Days(end.Sub(start))))
	if span < 1 {
		span = 1
	}
	if span > maxIdealDays {
		span = maxIdealDays
	}
	out := make([]BurndownPoint, 0, span+1)
	for d := 0; d <= span; d++ {
		val := total * (1 - float64(d)/float64(span))
		out = append(out, BurndownPoint{
			Date:      start.AddDate(0, 0, d),
			Remaining: math.Max(val, 0),
		})
	}
	return out
}

// actualLine prefers reported remaining points. Without them it derives
// remaining work from reported completion percentages and closes the series
// with today's task-derived value.
func actualLine(p *models.Project, now time.Time, total, remaining float64) []BurndownPoint {
	var out []BurndownPoint
	for _, u := range p.Updates {
		if u.RemainingPoints != nil {
			out = append(out, BurndownPoint{Date: u.Timestamp, Remaining: math.Max(*u.RemainingPoints, 0)})
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, u := range p.Updates {
		if u.CompletionPercentage == nil {
			continue
		}
		pct := clamp(*u.CompletionPercentage, 0, 100)
		out = append(out, BurndownPoint{Date: u.Timestamp, Remaining: total * (1 - pct/100)})
	}
	if len(out) == 0 || !models.SameDay(out[len(out)-1].Date, now) {
		out = append(out, BurndownPoint{Date: now, Remaining: remaining})
	}
	return out
}

func isOnTrack(b *BurndownMetrics) bool {
	if len(b.Actual) == 0 || len(b.Ideal) == 0 {
		return true
	}
	latest := b.Actual[len(b.Actual)-1]
	idx := models.WholeDays(latest.Date.Sub(b.StartDate))
	if idx < 0 {
		idx = 0
	}
	if idx > len(b.Ideal)-1 {
		idx = len(b.Ideal) - 1
	}
	return latest.Remaining <= b.Ideal[idx].Remaining*onTrackTolerance+epsilon
}

func projectCompletion(b *BurndownMetrics, now time.Time) time.Time {
	if len(b.Actual) < 2 {
		return b.EndDate
	}
	first, last := b.Actual[0], b.Actual[len(b.Actual)-1]
	days := models.Days(last.Date.Sub(first.Date))
	if days <= 0 {
		return b.EndDate
	}
	rate := (first.Remaining - last.Remaining) / days
	if rate <= 0 {
		return b.EndDate
	}
	return models.AddDays(now, last.Remaining/rate)
}

// daysBehind finds where on the ideal line the latest actual value sits and
// reports how long ago that was. Negative means ahead of schedule.
func daysBehind(b *BurndownMetrics, now time.Time) int {
	if b == nil || len(b.Ideal) == 0 || len(b.Actual) == 0 {
		return 0
	}
	latest := b.Actual[len(b.Actual)-1].Remaining
	for _, pt := range b.Ideal {
		if pt.Remaining <= latest+epsilon {
			return models.WholeDays(now.Sub(pt.Date))
		}
	}
	return 0
}
