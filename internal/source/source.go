// Package source loads the project map consumed by a monitoring cycle.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/project-health/internal/models"
)

// ProjectSource supplies a consistent snapshot of project state.
type ProjectSource interface {
	Load(ctx context.Context) (map[string]*models.Project, []Warning, error)
}

// Warning reports an input defect that was skipped or repaired.
type Warning struct {
	Project string `json:"project,omitempty"`
	Item    string `json:"item,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	var b strings.Builder
	if w.Project != "" {
		b.WriteString(w.Project)
	}
	if w.Item != "" {
		if b.Len() > 0 {
			b.WriteString("/")
		}
		b.WriteString(w.Item)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(w.Message)
	return b.String()
}

// Static serves a fixed project map.
type Static map[string]*models.Project

// Load returns the map unchanged.
func (s Static) Load(context.Context) (map[string]*models.Project, []Warning, error) {
	return map[string]*models.Project(s), nil, nil
}

// FileSource reads a YAML or JSON project document from disk on every Load.
type FileSource struct {
	Path string
}

// Load reads and decodes the file.
func (f *FileSource) Load(ctx context.Context) (map[string]*models.Project, []Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading projects file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a project document. YAML and JSON are both accepted.
func Decode(r io.Reader) (map[string]*models.Project, []Warning, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[string]*models.Project{}, nil, nil
		}
		return nil, nil, fmt.Errorf("decoding projects: %w", err)
	}

	c := &converter{}
	out := make(map[string]*models.Project, len(doc.Projects))
	for i, raw := range doc.Projects {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			c.warn("", fmt.Sprintf("projects[%d]", i), "project has no name, skipped")
			continue
		}
		if _, dup := out[name]; dup {
			c.warn(name, "", "duplicate project name, later entry wins")
		}
		out[name] = c.project(name, raw)
	}
	return out, c.warnings, nil
}

type document struct {
	Projects []rawProject `yaml:"projects"`
}

type rawProject struct {
	Name        string        `yaml:"name"`
	Status      string        `yaml:"status"`
	Owner       string        `yaml:"owner"`
	TeamMembers []string      `yaml:"team_members"`
	StartDate   string        `yaml:"start_date"`
	EndDate     string        `yaml:"end_date"`
	Tasks       []rawTask     `yaml:"tasks"`
	Updates     []rawUpdate   `yaml:"updates"`
	Resources   []rawResource `yaml:"resources"`
}

type rawTask struct {
	ID                   string   `yaml:"id"`
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description"`
	Status               string   `yaml:"status"`
	Owner                string   `yaml:"owner"`
	DueDate              string   `yaml:"due_date"`
	StartDate            string   `yaml:"start_date"`
	Priority             string   `yaml:"priority"`
	CompletionPercentage *float64 `yaml:"completion_percentage"`
	Blockers             []string `yaml:"blockers"`
	Dependencies         []string `yaml:"dependencies"`
	StoryPoints          *float64 `yaml:"story_points"`
	UpdatedAt            string   `yaml:"updated_at"`
}

type rawUpdate struct {
	Timestamp  string         `yaml:"timestamp"`
	Content    string         `yaml:"content"`
	Author     string         `yaml:"author"`
	UpdateType string         `yaml:"update_type"`
	Metadata   map[string]any `yaml:"metadata"`
}

type rawResource struct {
	ResourceType string   `yaml:"resource_type"`
	Status       string   `yaml:"status"`
	Quantity     *float64 `yaml:"quantity"`
	LastUpdated  string   `yaml:"last_updated"`
}

// Recognised numeric metadata keys.
const (
	KeyCompletionPercentage = "completion_percentage"
	KeyRemainingPoints      = "remaining_points"
	KeyCompletedPoints      = "completed_points"
	KeyPredictedPoints      = "predicted_points"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime accepts RFC 3339, a zone-less timestamp or a bare date.
// Zone-less values are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

type converter struct {
	warnings []Warning
}

func (c *converter) warn(project, item, msg string) {
	c.warnings = append(c.warnings, Warning{Project: project, Item: item, Message: msg})
}

// optionalTime parses an optional date, clearing it with a warning when
// it cannot be read.
func (c *converter) optionalTime(project, item, field, s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		c.warn(project, item, fmt.Sprintf("%s: %v, ignored", field, err))
		return nil
	}
	return &t
}

func (c *converter) project(name string, raw rawProject) *models.Project {
	status := models.ProjectActive
	if strings.TrimSpace(raw.Status) != "" {
		var ok bool
		if status, ok = models.ParseProjectStatus(raw.Status); !ok {
			c.warn(name, "", fmt.Sprintf("unknown project status %q", raw.Status))
		}
	}
	p := &models.Project{
		Name:        name,
		Status:      status,
		Owner:       raw.Owner,
		TeamMembers: raw.TeamMembers,
		StartDate:   c.optionalTime(name, "", "start_date", raw.StartDate),
		EndDate:     c.optionalTime(name, "", "end_date", raw.EndDate),
		Tasks:       make(map[string]*models.Task, len(raw.Tasks)),
		Resources:   make(map[string]models.ResourceStatus, len(raw.Resources)),
	}

	for i, rt := range raw.Tasks {
		id := strings.TrimSpace(rt.ID)
		if id == "" {
			c.warn(name, fmt.Sprintf("tasks[%d]", i), "task has no id, skipped")
			continue
		}
		if _, dup := p.Tasks[id]; dup {
			c.warn(name, "task "+id, "duplicate task id, later entry wins")
		}
		p.Tasks[id] = c.task(name, id, rt)
	}

	for i, ru := range raw.Updates {
		if u, ok := c.update(name, i, ru); ok {
			p.Updates = append(p.Updates, u)
		}
	}
	sort.SliceStable(p.Updates, func(i, j int) bool {
		return p.Updates[i].Timestamp.Before(p.Updates[j].Timestamp)
	})

	for i, rr := range raw.Resources {
		rtype := strings.TrimSpace(rr.ResourceType)
		if rtype == "" {
			c.warn(name, fmt.Sprintf("resources[%d]", i), "resource has no type, skipped")
			continue
		}
		state, ok := models.ParseResourceState(rr.Status)
		if !ok {
			c.warn(name, "resource "+rtype, fmt.Sprintf("unknown resource status %q", rr.Status))
		}
		res := models.ResourceStatus{ResourceType: rtype, Status: state, Quantity: rr.Quantity}
		if t := c.optionalTime(name, "resource "+rtype, "last_updated", rr.LastUpdated); t != nil {
			res.LastUpdated = *t
		}
		p.Resources[rtype] = res
	}
	return p
}

func (c *converter) task(project, id string, rt rawTask) *models.Task {
	item := "task " + id
	var ok bool
	status := models.TaskNotStarted
	if strings.TrimSpace(rt.Status) != "" {
		if status, ok = models.ParseTaskStatus(rt.Status); !ok {
			c.warn(project, item, fmt.Sprintf("unknown task status %q", rt.Status))
		}
	}
	prio := models.PriorityMedium
	if strings.TrimSpace(rt.Priority) != "" {
		if prio, ok = models.ParsePriority(rt.Priority); !ok {
			c.warn(project, item, fmt.Sprintf("unknown priority %q", rt.Priority))
		}
	}
	t := &models.Task{
		ID:           id,
		Name:         rt.Name,
		Description:  rt.Description,
		Status:       status,
		Owner:        strings.TrimSpace(rt.Owner),
		DueDate:      c.optionalTime(project, item, "due_date", rt.DueDate),
		StartDate:    c.optionalTime(project, item, "start_date", rt.StartDate),
		Priority:     prio,
		Blockers:     rt.Blockers,
		Dependencies: rt.Dependencies,
		StoryPoints:  rt.StoryPoints,
		UpdatedAt:    c.optionalTime(project, item, "updated_at", rt.UpdatedAt),
	}
	if cp := rt.CompletionPercentage; cp != nil {
		if *cp < 0 || *cp > 100 {
			c.warn(project, item, fmt.Sprintf("completion_percentage %v out of range, clamped", *cp))
		}
		t.CompletionPercentage = models.Float(clamp(*cp, 0, 100))
	}
	if t.Name == "" {
		t.Name = id
	}
	return t
}

func (c *converter) update(project string, i int, ru rawUpdate) (models.ProjectUpdate, bool) {
	item := fmt.Sprintf("updates[%d]", i)
	ts, err := ParseTime(ru.Timestamp)
	if err != nil {
		c.warn(project, item, fmt.Sprintf("timestamp: %v, update skipped", err))
		return models.ProjectUpdate{}, false
	}
	typ := models.UpdateGeneral
	if strings.TrimSpace(ru.UpdateType) != "" {
		var ok bool
		if typ, ok = models.ParseUpdateType(ru.UpdateType); !ok {
			c.warn(project, item, fmt.Sprintf("unknown update type %q", ru.UpdateType))
		}
	}
	u := models.ProjectUpdate{
		Timestamp:  ts,
		Content:    ru.Content,
		Author:     ru.Author,
		UpdateType: typ,
	}

	keys := make([]string, 0, len(ru.Metadata))
	for k := range ru.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := ru.Metadata[k]
		var dst **float64
		switch k {
		case KeyCompletionPercentage:
			dst = &u.CompletionPercentage
		case KeyRemainingPoints:
			dst = &u.RemainingPoints
		case KeyCompletedPoints:
			dst = &u.CompletedPoints
		case KeyPredictedPoints:
			dst = &u.PredictedPoints
		default:
			if u.Metadata == nil {
				u.Metadata = make(map[string]string)
			}
			u.Metadata[k] = fmt.Sprint(v)
			continue
		}
		f, ok := number(v)
		if !ok {
			c.warn(project, item, fmt.Sprintf("metadata %s: %v is not numeric, dropped", k, v))
			continue
		}
		*dst = models.Float(f)
	}
	return u, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
