package store

import (
	"context"
	"fmt"
	"time"
)

// Prune deletes cycles started before cutoff together with everything they
// produced, and returns the number of cycles removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cycles WHERE started_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cycles: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("cycles", n).Time("cutoff", cutoff).Msg("old cycles pruned")
	}
	return n, nil
}

// RunRetention prunes everything older than retention.
func (s *Store) RunRetention(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	_, err := s.Prune(ctx, time.Now().Add(-retention))
	return err
}

// DBSizeBytes returns the database size in bytes
func (s *Store) DBSizeBytes() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pageCount int64
	var pageSize int64

	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}
	return pageCount * pageSize, nil
}
