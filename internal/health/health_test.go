package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func ok(context.Context) Result       { return Result{Status: StatusOK} }
func down(context.Context) Result     { return Result{Status: StatusDown, Detail: "unreachable"} }
func degraded(context.Context) Result { return Result{Status: StatusDegraded} }

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", ok)
	c.Register("cycle", ok)

	rep := c.Report(context.Background())
	assert.True(t, rep.Ready())
	assert.Len(t, rep.Checks, 2)
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", ok)
	c.Register("cycle", down)

	rep := c.Report(context.Background())
	assert.False(t, rep.Ready())
	assert.Equal(t, "not_ready", rep.Status)
	assert.Equal(t, "unreachable", rep.Checks["cycle"].Detail)
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("db", degraded)
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	assert.True(t, NewChecker(zerolog.Nop()).IsReady(context.Background()))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPing(t *testing.T) {
	assert.Equal(t, StatusOK, Ping(pinger{})(context.Background()).Status)

	r := Ping(pinger{err: errors.New("database is locked")})(context.Background())
	assert.Equal(t, StatusDown, r.Status)
	assert.Equal(t, "database is locked", r.Detail)
}

func TestFreshness(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name string
		last time.Time
		want Status
	}{
		{"never ran", time.Time{}, StatusDown},
		{"fresh", now.Add(-time.Minute), StatusOK},
		{"aging", now.Add(-8 * time.Minute), StatusDegraded},
		{"stale", now.Add(-11 * time.Minute), StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := Freshness(func() time.Time { return tt.last }, 10*time.Minute, clock)
			assert.Equal(t, tt.want, check(context.Background()).Status)
		})
	}
}
