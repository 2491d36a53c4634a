// Package health reports liveness and readiness of the project health service.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

const checkTimeout = 5 * time.Second

// Result is the outcome of one check.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// CheckFunc checks a dependency's health.
type CheckFunc func(ctx context.Context) Result

// Report aggregates every check. It is ready unless a check is down.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Ready reports whether no check is down.
func (r Report) Ready() bool { return r.Status == "ready" }

// Checker manages health checks for all dependencies.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check, replacing any with the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all health checks concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Result, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			r := f(checkCtx)
			mu.Lock()
			results[n] = r
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return results
}

// Report runs every check and summarises them.
func (c *Checker) Report(ctx context.Context) Report {
	results := c.RunAll(ctx)
	rep := Report{Status: "ready", Checks: results}

	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r := results[n]
		if r.Status == StatusOK {
			continue
		}
		c.logger.Warn().Str("check", n).Str("status", string(r.Status)).Str("detail", r.Detail).Msg("health check not ok")
		if r.Status == StatusDown {
			rep.Status = "not_ready"
		}
	}
	return rep
}

// IsReady returns true if no check is down.
func (c *Checker) IsReady(ctx context.Context) bool {
	return c.Report(ctx).Ready()
}

// Pinger is anything with a connectivity probe, such as the SQLite store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping reports down when p cannot be reached.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Result{Status: StatusDown, Detail: err.Error()}
		}
		return Result{Status: StatusOK}
	}
}

// Freshness reports down until a cycle has succeeded and whenever the last
// success is older than maxAge. A success older than half of maxAge is
// degraded.
func Freshness(lastSuccess func() time.Time, maxAge time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(context.Context) Result {
		last := lastSuccess()
		if last.IsZero() {
			return Result{Status: StatusDown, Detail: "no completed cycle yet"}
		}
		age := now().Sub(last)
		detail := fmt.Sprintf("last cycle %s ago", age.Truncate(time.Second))
		switch {
		case age > maxAge:
			return Result{Status: StatusDown, Detail: detail}
		case age > maxAge/2:
			return Result{Status: StatusDegraded, Detail: detail}
		default:
			return Result{Status: StatusOK, Detail: detail}
		}
	}
}
