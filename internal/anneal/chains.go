package anneal

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BuildFunc constructs the optimizer of one chain. seed is the chain's
// own seed and must end up in its Params.
type BuildFunc func(chain int, seed int64) (*Optimizer, error)

// Chains is the outcome of RunChains.
type Chains struct {
	Results []Result
	// Best indexes the lowest scoring result; ties go to the lower index.
	// Results of chains that never started have a nil Best.
	Best int
}

// Winner returns the best result.
func (c Chains) Winner() Result {
	return c.Results[c.Best]
}

// RunChains runs n independent chains seeded seed, seed+1, ... in parallel,
// at most GOMAXPROCS at a time. Chains share only keys and whatever the
// build function hands them; each owns its random stream.
//
// Cancelling ctx stops running chains after their current iteration and
// skips the ones not started yet. The chains that ran are still returned,
// together with ctx's error. A chain that failed to build while ctx was
// being cancelled fails the whole call with both errors joined.
func RunChains(ctx context.Context, n int, seed int64, build BuildFunc, keys []int, baseline float64) (Chains, error) {
	if n < 1 {
		return Chains{}, fmt.Errorf("chain count must be positive, got %d", n)
	}
	results := make([]Result, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opt, err := build(i, seed+int64(i))
			if err != nil {
				return fmt.Errorf("chain %d: %w", i, err)
			}
			results[i] = opt.RunContext(gctx, keys, baseline)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			return Chains{}, err
		}
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return Chains{}, errors.Join(err, ctx.Err())
		}
	}

	best := -1
	for i, r := range results {
		if r.Best == nil {
			continue
		}
		if best < 0 || r.BestScore < results[best].BestScore {
			best = i
		}
	}
	if best < 0 {
		return Chains{}, ctx.Err()
	}
	return Chains{Results: results, Best: best}, ctx.Err()
}
