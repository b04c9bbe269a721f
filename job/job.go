// Package job fans the redaction controller out across a batch of documents
// with bounded parallelism and folds the per-document outcomes into one
// process-level result. One document's failure never aborts the others; the
// batch always runs to completion and reports the worst-severity exit code.
package job

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/redact"
)

// Process exit codes, ordered by the severity ranking used when several
// failure categories co-occur in one batch: a verification leak always
// dominates, then I/O failures, then strict-mode no-match.
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitIOError     = 2
	ExitNoMatches   = 3
	ExitLeak        = 4
)

// Request names one document to process.
type Request struct {
	Input  string
	Output string
}

// Options configures the batch run.
type Options struct {
	// Workers bounds parallelism; zero selects half the available CPUs.
	Workers int
	// Strict makes a zero-redaction document a batch failure.
	Strict bool
}

// Summary aggregates a finished batch. Outcomes appear in completion order;
// the batch makes no cross-document ordering guarantee.
type Summary struct {
	Outcomes []redact.Outcome
	Strict   bool
}

// Processor runs the redaction pipeline for a single document.
// *redact.Controller is the production implementation.
type Processor interface {
	Process(ctx context.Context, path, output string) redact.Outcome
}

// Runner executes batches against one processor. The processor's compiled
// grammar is the only state shared between workers, and it is immutable.
type Runner struct {
	proc Processor
	opts Options
	log  observability.Logger
}

// NewRunner constructs a batch runner.
func NewRunner(proc Processor, opts Options, log observability.Logger) *Runner {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Runner{proc: proc, opts: opts, log: log}
}

// WorkerCount resolves the effective pool width: the requested count (or
// half the CPUs when unset), clamped to at least one and at most the number
// of jobs and the CPU count.
func WorkerCount(requested, jobs int) int {
	cpus := runtime.NumCPU()
	workers := requested
	if workers <= 0 {
		workers = cpus / 2
	}
	if workers < 1 {
		workers = 1
	}
	if jobs > 0 && workers > jobs {
		workers = jobs
	}
	if workers > cpus {
		workers = cpus
	}
	return workers
}

// Run processes every request and returns the aggregated summary. Documents
// run to completion or hard error; there is no per-document cancellation
// beyond the shared context.
func (r *Runner) Run(ctx context.Context, reqs []Request) Summary {
	summary := Summary{Strict: r.opts.Strict}
	if len(reqs) == 0 {
		return summary
	}

	workers := WorkerCount(r.opts.Workers, len(reqs))
	r.log.Debug("starting batch",
		observability.Int("documents", len(reqs)),
		observability.Int("workers", workers))

	work := make(chan Request)
	results := make(chan redact.Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				results <- r.process(ctx, req)
			}
		}()
	}

	go func() {
		for _, req := range reqs {
			work <- req
		}
		close(work)
		wg.Wait()
		close(results)
	}()

	// Single synchronization point per document completion.
	for out := range results {
		r.report(out)
		summary.Outcomes = append(summary.Outcomes, out)
	}
	return summary
}

// process isolates one document: a panic inside the pipeline becomes an
// error outcome instead of taking down the pool.
func (r *Runner) process(ctx context.Context, req Request) (out redact.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = redact.Outcome{
				Path:       req.Input,
				OutputPath: req.Output,
				Err:        fmt.Errorf("panic processing %s: %v", req.Input, rec),
			}
		}
	}()
	return r.proc.Process(ctx, req.Input, req.Output)
}

func (r *Runner) report(out redact.Outcome) {
	log := r.log.With(observability.String("path", out.Path))
	switch out.Category() {
	case redact.CategoryLeak:
		log.Error("verification failed: output still matches",
			observability.String("output", out.OutputPath),
			observability.Int("leaked", out.Leaked))
	case redact.CategoryIO:
		log.Error("document failed", observability.Error("err", out.Err))
	case redact.CategoryNoMatch:
		var fields []observability.Field
		if out.RetriedDPI > 0 {
			fields = append(fields, observability.Int("retried_dpi", out.RetriedDPI))
		}
		log.Warn("no matches found", fields...)
	default:
		fields := []observability.Field{
			observability.String("output", out.OutputPath),
			observability.Int("redactions", out.Redactions),
		}
		if out.RetriedDPI > 0 {
			fields = append(fields, observability.Int("retried_dpi", out.RetriedDPI))
		}
		if out.Verified {
			log.Info("verified", fields...)
		} else {
			log.Info("redacted", fields...)
		}
	}
}

// Counts tallies outcomes per category.
func (s Summary) Counts() (ok, noMatch, ioErr, leaks int) {
	for _, out := range s.Outcomes {
		switch out.Category() {
		case redact.CategoryLeak:
			leaks++
		case redact.CategoryIO:
			ioErr++
		case redact.CategoryNoMatch:
			noMatch++
		default:
			ok++
		}
	}
	return
}

// ExitCode folds the batch into the process exit status. Leak dominates any
// other condition; I/O failures beat no-match; no-match only fails the batch
// in strict mode.
func (s Summary) ExitCode() int {
	_, noMatch, ioErr, leaks := s.Counts()
	switch {
	case leaks > 0:
		return ExitLeak
	case ioErr > 0:
		return ExitIOError
	case noMatch > 0 && s.Strict:
		return ExitNoMatches
	}
	return ExitSuccess
}
