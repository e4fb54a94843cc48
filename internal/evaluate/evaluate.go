// Package evaluate scores a driven trajectory against the reference line of
// its map.
package evaluate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/racingline/internal/dtw"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// ReferenceSource supplies the reference line for a map.
type ReferenceSource interface {
	Load(mapName string) (trajectory.Trajectory, error)
}

// Evaluator scores candidates against stored reference lines.
type Evaluator struct {
	References ReferenceSource
	Options    dtw.Options
}

// New returns an Evaluator over refs using opts.
func New(refs ReferenceSource, opts dtw.Options) *Evaluator {
	return &Evaluator{References: refs, Options: opts}
}

// Score returns the DTW distance between candidate and the reference line
// for mapName. A missing reference or malformed candidate is an error; no
// default score is ever produced.
func (e *Evaluator) Score(mapName string, candidate trajectory.Trajectory) (float64, error) {
	res, err := e.Evaluate(mapName, candidate)
	if err != nil {
		return 0, err
	}
	return res.Distance, nil
}

// Evaluate is like Score but returns the full alignment result.
func (e *Evaluator) Evaluate(mapName string, candidate trajectory.Trajectory) (dtw.Result, error) {
	if err := candidate.Validate(); err != nil {
		return dtw.Result{}, fmt.Errorf("candidate for map %q: %w", mapName, err)
	}
	ref, err := e.References.Load(mapName)
	if err != nil {
		return dtw.Result{}, err
	}
	return Compare(ref, candidate, e.Options)
}

// Compare aligns candidate against reference with opts.
func Compare(reference, candidate trajectory.Trajectory, opts dtw.Options) (dtw.Result, error) {
	return dtw.Compute(reference, candidate, opts)
}

// Job is one candidate to be scored in a batch.
type Job struct {
	// Name identifies the job in results and logs, e.g. a run directory.
	Name      string
	Map       string
	Candidate trajectory.Trajectory
}

// JobResult is the outcome of one Job. Exactly one of Err or Score is
// meaningful: a failed job has no score.
type JobResult struct {
	Name  string
	Map   string
	Score float64
	Cells int
	Err   error
}

// Batch scores jobs concurrently with at most workers goroutines. Results
// are returned in job order. Per-job failures are reported in JobResult.Err
// and do not stop the batch; only cancellation of ctx does.
func (e *Evaluator) Batch(ctx context.Context, jobs []Job, workers int) ([]JobResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Each distinct reference is read once up front; workers share it
	// read-only.
	refs := make(map[string]trajectory.Trajectory)
	refErrs := make(map[string]error)
	for _, j := range jobs {
		if _, seen := refs[j.Map]; seen {
			continue
		}
		if _, seen := refErrs[j.Map]; seen {
			continue
		}
		ref, err := e.References.Load(j.Map)
		if err != nil {
			refErrs[j.Map] = err
			continue
		}
		refs[j.Map] = ref
	}

	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, j := range jobs {
		results[i] = JobResult{Name: j.Name, Map: j.Map}
		if err, bad := refErrs[j.Map]; bad {
			results[i].Err = err
			continue
		}
		if err := gctx.Err(); err != nil {
			break
		}
		ref := refs[j.Map]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Compare(ref, j.Candidate, e.Options)
			if err != nil {
				results[i].Err = fmt.Errorf("%s: %w", j.Name, err)
				return nil
			}
			results[i].Score = res.Distance
			results[i].Cells = res.Cells
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	monitoring.Logf("[Evaluate] batch of %d jobs finished with %d workers, %d failed", len(jobs), workers, failed)
	return results, nil
}
