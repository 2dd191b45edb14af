// Package cleanup implements the retention job that physically deletes
// session records the store already treats as absent. Expiry-on-read keeps
// correctness; this job keeps storage bounded.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cvperfect-sessions/internal/store"
)

// DefaultMaxAge is the retention cutoff. It is deliberately longer than the
// read-path TTL so a record is never deleted while still servable.
const DefaultMaxAge = 48 * time.Hour

// DefaultConcurrency bounds parallel deletes against the backend.
const DefaultConcurrency = 8

// IndexPruner is implemented by stores that keep a secondary email index
// needing orphan cleanup (the file store).
type IndexPruner interface {
	PruneOrphanedIndexes(ctx context.Context) (int, error)
}

// Report summarizes one retention run.
type Report struct {
	Found          int       `json:"sessions_found"`
	Deleted        int       `json:"sessions_deleted"`
	IndexesPruned  int       `json:"indexes_pruned"`
	Errors         []string  `json:"errors,omitempty"`
	DryRun         bool      `json:"dry_run"`
	MaxAge         string    `json:"max_age"`
	StartedAt      time.Time `json:"started_at"`
	DurationMillis int64     `json:"duration_ms"`
}

// Runner executes retention sweeps against a Store.
type Runner struct {
	store       store.Store
	maxAge      time.Duration
	concurrency int
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(r *Runner) { r.maxAge = d }
}

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock overrides the runner's clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner over the given store.
func NewRunner(st store.Store, opts ...Option) *Runner {
	r := &Runner{
		store:       st,
		maxAge:      DefaultMaxAge,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one sweep: list records older than the cutoff, delete them
// concurrently, and prune orphaned email indexes where the store supports
// it. With dryRun set nothing is deleted and the report shows what would
// have been.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	started := r.now()
	report := &Report{
		DryRun:    dryRun,
		MaxAge:    r.maxAge.String(),
		StartedAt: started,
	}

	cutoff := started.Add(-r.maxAge)
	ids, err := r.store.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	report.Found = len(ids)

	if !dryRun && len(ids) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, id := range ids {
			g.Go(func() error {
				if err := r.store.Delete(gctx, id); err != nil {
					mu.Lock()
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
					mu.Unlock()
					return nil // keep sweeping; errors are reported, not fatal
				}
				mu.Lock()
				report.Deleted++
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, fmt.Errorf("retention sweep aborted: %w", err)
		}
	}

	if pruner, ok := r.store.(IndexPruner); ok && !dryRun {
		pruned, err := pruner.PruneOrphanedIndexes(ctx)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("index prune: %v", err))
		} else {
			report.IndexesPruned = pruned
		}
	}

	report.DurationMillis = r.now().Sub(started).Milliseconds()
	log.Printf("Retention sweep: found=%d deleted=%d pruned=%d dry_run=%v",
		report.Found, report.Deleted, report.IndexesPruned, dryRun)
	return report, nil
}

// RunPeriodic runs sweeps at the given interval until ctx is canceled.
func (r *Runner) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx, false); err != nil {
				log.Printf("Retention sweep failed: %v", err)
			}
		}
	}
}
