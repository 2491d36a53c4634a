// Package models defines the project, task and analysis types shared by the
// health engine and the service around it.
package models

import (
	"sort"
	"time"
)

// Project is the caller-owned view of one project. The engine only reads it.
type Project struct {
	Name        string                    `json:"name"`
	Status      ProjectStatus             `json:"status"`
	Owner       string                    `json:"owner,omitempty"`
	TeamMembers []string                  `json:"team_members,omitempty"`
	StartDate   *time.Time                `json:"start_date,omitempty"`
	EndDate     *time.Time                `json:"end_date,omitempty"`
	Tasks       map[string]*Task          `json:"tasks"`
	Updates     []ProjectUpdate           `json:"updates,omitempty"`
	Resources   map[string]ResourceStatus `json:"resources,omitempty"`
}

// TaskIDs returns the project's task ids in sorted order.
func (p *Project) TaskIDs() []string {
	ids := make([]string, 0, len(p.Tasks))
	for id := range p.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedTasks returns the tasks ordered by id.
func (p *Project) SortedTasks() []*Task {
	out := make([]*Task, 0, len(p.Tasks))
	for _, id := range p.TaskIDs() {
		if t := p.Tasks[id]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// LatestUpdate returns the most recent update, or nil when there are none.
// Updates are kept in timestamp order.
func (p *Project) LatestUpdate() *ProjectUpdate {
	if len(p.Updates) == 0 {
		return nil
	}
	return &p.Updates[len(p.Updates)-1]
}

// Dependents returns the set of task ids that some other task in the
// project lists as a dependency.
func (p *Project) Dependents() map[string]bool {
	deps := make(map[string]bool)
	for id, t := range p.Tasks {
		if t == nil {
			continue
		}
		for _, d := range t.Dependencies {
			if d != id {
				deps[d] = true
			}
		}
	}
	return deps
}

// Task is a unit of work inside a project.
type Task struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	Status               TaskStatus `json:"status"`
	Owner                string     `json:"owner,omitempty"`
	DueDate              *time.Time `json:"due_date,omitempty"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	Priority             Priority   `json:"priority"`
	CompletionPercentage *float64   `json:"completion_percentage,omitempty"`
	Blockers             []string   `json:"blockers,omitempty"`
	Dependencies         []string   `json:"dependencies,omitempty"`
	StoryPoints          *float64   `json:"story_points,omitempty"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// IsCompleted reports whether the task is done.
func (t *Task) IsCompleted() bool { return t.Status == TaskCompleted }

// IsActive reports whether the task still represents open work.
func (t *Task) IsActive() bool {
	return t.Status != TaskCompleted && t.Status != TaskCancelled
}

// IsBlocked is true for open work with a blocked status or any recorded
// blocker. Completed and cancelled tasks are never blocked.
func (t *Task) IsBlocked() bool {
	if !t.IsActive() {
		return false
	}
	return t.Status == TaskBlocked || len(t.Blockers) > 0
}

// Weight is the task's story points, or 1 when none are declared.
func (t *Task) Weight() float64 {
	if t.StoryPoints != nil {
		return *t.StoryPoints
	}
	return 1
}

// Completion returns the recorded completion percentage, or 0.
func (t *Task) Completion() float64 {
	if t.CompletionPercentage != nil {
		return *t.CompletionPercentage
	}
	return 0
}

// ProjectUpdate is one status report against a project. The recognised
// numeric metadata keys are lifted into typed fields at the input boundary;
// everything else stays in Metadata.
type ProjectUpdate struct {
	Timestamp            time.Time         `json:"timestamp"`
	Content              string            `json:"content"`
	Author               string            `json:"author,omitempty"`
	UpdateType           UpdateType        `json:"update_type"`
	CompletionPercentage *float64          `json:"completion_percentage,omitempty"`
	RemainingPoints      *float64          `json:"remaining_points,omitempty"`
	CompletedPoints      *float64          `json:"completed_points,omitempty"`
	PredictedPoints      *float64          `json:"predicted_points,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// ResourceStatus tracks one resource type for a project.
type ResourceStatus struct {
	ResourceType string        `json:"resource_type"`
	Status       ResourceState `json:"status"`
	Quantity     *float64      `json:"quantity,omitempty"`
	LastUpdated  time.Time     `json:"last_updated"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
