// Package history keeps a bounded, append-only series of snapshots per
// project for trend analysis.
package history

import (
	"fmt"
	"sort"
	"sync"

	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
)

// DefaultLimit is the number of snapshots retained per project.
const DefaultLimit = 30

// Store holds snapshot series keyed by project name. Appends to one project
// are serialised by that project's lock; reads return copies.
type Store struct {
	mu     sync.RWMutex
	limit  int
	series map[string]*series
}

type series struct {
	mu    sync.Mutex
	snaps []models.Snapshot
}

// New creates a Store retaining limit snapshots per project.
func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		limit:  limit,
		series: make(map[string]*series),
	}
}

// Limit returns the per-project capacity.
func (s *Store) Limit() int { return s.limit }

func (s *Store) get(project string, create bool) *series {
	s.mu.RLock()
	sr, ok := s.series[project]
	s.mu.RUnlock()
	if ok || !create {
		return sr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[project]; ok {
		return sr
	}
	sr = &series{}
	s.series[project] = sr
	return sr
}

// Append adds snap to the project's series, evicting the oldest entry past
// the limit. Timestamps must strictly increase.
func (s *Store) Append(project string, snap models.Snapshot) error {
	sr := s.get(project, true)
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if n := len(sr.snaps); n > 0 && !snap.Timestamp.After(sr.snaps[n-1].Timestamp) {
		return fmt.Errorf("append %q at %s: %w", project, snap.Timestamp, perrors.ErrNonMonotonic)
	}
	sr.snaps = append(sr.snaps, snap)
	if over := len(sr.snaps) - s.limit; over > 0 {
		sr.snaps = append([]models.Snapshot(nil), sr.snaps[over:]...)
	}
	return nil
}

// Load replaces a project's series, e.g. when rehydrating from storage.
// Input is sorted by time, duplicate timestamps are collapsed and only the
// newest entries up to the limit are kept.
func (s *Store) Load(project string, snaps []models.Snapshot) {
	sorted := append([]models.Snapshot(nil), snaps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	dedup := sorted[:0]
	for _, sn := range sorted {
		if n := len(dedup); n > 0 && !sn.Timestamp.After(dedup[n-1].Timestamp) {
			continue
		}
		dedup = append(dedup, sn)
	}
	if over := len(dedup) - s.limit; over > 0 {
		dedup = dedup[over:]
	}

	sr := s.get(project, true)
	sr.mu.Lock()
	sr.snaps = append([]models.Snapshot(nil), dedup...)
	sr.mu.Unlock()
}

// Get returns a copy of the project's series, oldest first.
func (s *Store) Get(project string) []models.Snapshot {
	sr := s.get(project, false)
	if sr == nil {
		return nil
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return append([]models.Snapshot(nil), sr.snaps...)
}

// Len returns the number of snapshots held for project.
func (s *Store) Len(project string) int {
	sr := s.get(project, false)
	if sr == nil {
		return 0
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.snaps)
}

// Projects returns the names with at least one series, sorted.
func (s *Store) Projects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove drops a project's series.
func (s *Store) Remove(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, project)
}
