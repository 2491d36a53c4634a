// Package reschedule finds weeks in which an owner has too much work due
// and proposes deferring low-priority tasks out of them.
package reschedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/models"
)

const (
	// OverloadedWeekTasks is the number of tasks due in one week that marks
	// the week as overloaded.
	OverloadedWeekTasks = 3

	// MaxCandidates caps the tasks proposed per overloaded week.
	MaxCandidates = 2

	// DeferDays is how far a deferred task's due date moves.
	DeferDays = 7
)

// Recommender proposes workload rebalancing. It holds only configuration.
type Recommender struct {
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithClock overrides the time source used for recommendation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recommender) { r.now = now }
}

// New creates a Recommender.
func New(logger zerolog.Logger, opts ...Option) *Recommender {
	r := &Recommender{
		now:    time.Now,
		logger: logger.With().Str("component", "reschedule").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ownedTask is an active task tagged with its project.
type ownedTask struct {
	project string
	task    *models.Task
	hasDeps bool
}

// GenerateRecommendations returns one recommendation per owner and
// overloaded week, ordered by owner then week.
func (r *Recommender) GenerateRecommendations(projects map[string]*models.Project) []models.Recommendation {
	now := r.now()
	byOwner := collect(projects)

	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	var out []models.Recommendation
	for _, owner := range owners {
		tasks := byOwner[owner]
		sortByDueDate(tasks)
		for _, week := range overloadedWeeks(tasks) {
			out = append(out, recommend(owner, week, now))
		}
	}
	r.logger.Debug().Int("owners", len(owners)).Int("recommendations", len(out)).Msg("recommendations generated")
	return out
}

func collect(projects map[string]*models.Project) map[string][]ownedTask {
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)

	byOwner := make(map[string][]ownedTask)
	for _, name := range names {
		p := projects[name]
		if p == nil {
			continue
		}
		dependents := p.Dependents()
		for _, t := range p.SortedTasks() {
			if !t.IsActive() || t.Owner == "" {
				continue
			}
			byOwner[t.Owner] = append(byOwner[t.Owner], ownedTask{
				project: name,
				task:    t,
				hasDeps: dependents[t.ID],
			})
		}
	}
	return byOwner
}

// sortByDueDate orders tasks by due date with undated tasks last.
func sortByDueDate(tasks []ownedTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].task.DueDate, tasks[j].task.DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

type week struct {
	start time.Time
	tasks []ownedTask
}

func overloadedWeeks(tasks []ownedTask) []week {
	var weeks []week
	index := make(map[time.Time]int)
	for _, ot := range tasks {
		if ot.task.DueDate == nil {
			continue
		}
		start := models.WeekStart(*ot.task.DueDate)
		i, ok := index[start]
		if !ok {
			i = len(weeks)
			index[start] = i
			weeks = append(weeks, week{start: start})
		}
		weeks[i].tasks = append(weeks[i].tasks, ot)
	}

	out := weeks[:0]
	for _, w := range weeks {
		if len(w.tasks) >= OverloadedWeekTasks {
			out = append(out, w)
		}
	}
	return out
}

// tryOrder ranks priorities for deferral. High priority tasks are never
// deferred.
func tryOrder(p models.Priority) (int, bool) {
	switch p {
	case models.PriorityHigh:
		return 0, false
	case models.PriorityLow:
		return 1, true
	case models.PriorityMedium:
		return 2, true
	default:
		return 0, true
	}
}

// candidates picks up to MaxCandidates deferrable tasks from one week.
// Tasks that other tasks in the same project depend on are skipped.
func candidates(tasks []ownedTask) []ownedTask {
	pool := make([]ownedTask, 0, len(tasks))
	for _, ot := range tasks {
		if _, ok := tryOrder(ot.task.Priority); ok && !ot.hasDeps {
			pool = append(pool, ot)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		a, _ := tryOrder(pool[i].task.Priority)
		b, _ := tryOrder(pool[j].task.Priority)
		return a < b
	})
	if len(pool) > MaxCandidates {
		pool = pool[:MaxCandidates]
	}
	return pool
}

func recommend(owner string, w week, now time.Time) models.Recommendation {
	picked := candidates(w.tasks)
	resched := make([]models.ReschedulableTask, 0, len(picked))
	ids := make([]string, 0, len(picked))
	for _, ot := range picked {
		due := *ot.task.DueDate
		resched = append(resched, models.ReschedulableTask{
			ProjectName:      ot.project,
			TaskID:           ot.task.ID,
			TaskName:         ot.task.Name,
			CurrentDueDate:   due,
			SuggestedDueDate: due.AddDate(0, 0, DeferDays),
			Priority:         ot.task.Priority,
		})
		ids = append(ids, ot.task.ID)
	}

	reason := fmt.Sprintf("%s has %d tasks due in the week of %s.",
		owner, len(w.tasks), w.start.Format("2006-01-02"))
	if len(ids) > 0 {
		reason += fmt.Sprintf(" Deferring %s by %d days would reduce the load.", strings.Join(ids, ", "), DeferDays)
	} else {
		reason += " No task in this week can be deferred safely."
	}

	return models.Recommendation{
		Owner:              owner,
		PeriodStart:        w.start,
		PeriodEnd:          w.start.AddDate(0, 0, 7).Add(-time.Second),
		TaskCount:          len(w.tasks),
		ReschedulableTasks: resched,
		Reason:             reason,
		Timestamp:          now,
	}
}
