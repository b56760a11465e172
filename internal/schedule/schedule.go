// Package schedule fans work out across (collection, year) units the
// way spec §5 describes: embarrassingly parallel, bounded by a worker
// count, and throttled by host load average so a run sharing a machine
// with other jobs backs off instead of starving it. The worker-pool
// shape is grounded on the teacher's parallel build/ingest pools
// (internal/builder/parallel.go, internal/ingest/parallel.go); the
// fan-out/error-aggregation layer on top uses errgroup instead of the
// teacher's hand-rolled sync.WaitGroup+channel plumbing, since spec §5
// is explicit about per-unit failure isolation without aborting
// siblings.
package schedule

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"golang.org/x/sync/errgroup"
)

// Unit identifies one (collection, year) job.
type Unit struct {
	Collection string
	Year       string
}

func (u Unit) String() string { return fmt.Sprintf("%s-%s", u.Collection, u.Year) }

// Governor polls the host's 1-minute load average and makes callers
// wait while it exceeds MaxLoad. A zero or negative MaxLoad disables
// throttling entirely.
type Governor struct {
	MaxLoad      float64
	PollInterval time.Duration
}

func (g Governor) pollInterval() time.Duration {
	if g.PollInterval <= 0 {
		return 2 * time.Second
	}
	return g.PollInterval
}

// wait blocks until the load average is at or below MaxLoad, or ctx is
// cancelled. A failure to read the load average (e.g. unsupported
// platform) is treated as "no pressure" rather than a fatal error: the
// governor is an optimization, not a correctness requirement.
func (g Governor) wait(ctx context.Context) error {
	if g.MaxLoad <= 0 {
		return nil
	}
	for {
		avg, err := load.Avg()
		if err != nil || avg.Load1 <= g.MaxLoad {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pollInterval()):
		}
	}
}

// Pool runs a function over a set of units with bounded concurrency.
type Pool struct {
	Workers  int
	Governor Governor
}

// NewPool builds a Pool sized to the host's CPU count when workers is
// not positive.
func NewPool(workers int) Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Pool{Workers: workers}
}

// Result is one unit's outcome, collected so a caller can report
// partial failures without a whole run aborting on the first one
// (spec §5: "one unit's failure does not block its siblings").
type Result struct {
	Unit Unit
	Err  error
}

// Run executes fn once per unit, honoring the load governor before
// admitting each new unit and capping in-flight work at Workers. It
// returns one Result per unit, sorted by unit ("<collection>-<year>"); the caller
// decides what a partial failure means for exit status and
// diagnostics.
func (p Pool) Run(ctx context.Context, units []Unit, fn func(ctx context.Context, u Unit) error) []Result {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan Result, len(units))
	sem := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		u := u
		if err := p.Governor.wait(gctx); err != nil {
			results <- Result{Unit: u, Err: err}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			results <- Result{Unit: u, Err: gctx.Err()}
			continue
		}
		g.Go(func() error {
			defer func() { <-sem }()
			err := fn(gctx, u)
			results <- Result{Unit: u, Err: err}
			return nil // per-unit errors are reported via Result, not propagated
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]Result, 0, len(units))
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit.String() < out[j].Unit.String() })
	return out
}
