// Package convert runs JSONL -> CSV conversion jobs in parallel.
package convert

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"redditetl/internal/config"
	"redditetl/internal/logger"
	"redditetl/internal/progress"
	"redditetl/internal/report"
)

type Options struct {
	Workers  int       // <= 0 means runtime.NumCPU()
	Progress io.Writer // nil disables the progress bar
}

// Executor fans jobs out over a bounded worker pool. Jobs share nothing, so
// the only synchronization is the final join.
type Executor struct {
	cfg  *config.Config
	opts Options
}

func NewExecutor(cfg *config.Config, opts Options) *Executor {
	return &Executor{cfg: cfg, opts: opts}
}

// Workers caps the requested parallelism at the number of jobs.
func Workers(requested, jobs int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Resolve maps a job's relative paths onto the configured roots.
func (e *Executor) Resolve(j Job) Job {
	j.Name = j.label()
	j.Source = e.cfg.RawPath(j.Source)
	j.Destination = e.cfg.ProcessedPath(j.Destination)
	return j
}

// Run converts every job and returns once all of them have finished.
// results[i] always belongs to jobs[i], whatever order they completed in.
func (e *Executor) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := Workers(e.opts.Workers, len(jobs))
	log := logger.Named("convert")
	log.Info().Int("jobs", len(jobs)).Int("workers", workers).Msg("preparing to process files in parallel")
	start := time.Now()

	bar := progress.New(e.opts.Progress, "convert", len(jobs))
	idx := make(chan int, len(jobs))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range idx {
			results[i] = e.runOne(ctx, jobs[i])
			bar.Increment()
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for i := range jobs {
		idx <- i
	}
	close(idx)
	wg.Wait()
	bar.Finish()

	log.Info().Str("took", report.Seconds(time.Since(start))).Msg("ALL TASKS FINISHED")
	return results
}

// runOne isolates a job: a panic becomes that job's FAILED result.
func (e *Executor) runOne(ctx context.Context, j Job) (res Result) {
	j = e.Resolve(j)
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Name:        j.Name,
				Source:      j.Source,
				Destination: j.Destination,
				State:       report.Failed,
				Err:         fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return ConvertFile(ctx, j)
}
