package convert

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"redditetl/internal/report"
	"redditetl/internal/schema"
)

// Job converts one JSONL source into one CSV table. Relative paths are
// resolved by the Executor against the configured raw/processed roots.
type Job struct {
	Name        string
	Source      string
	Destination string
	Kind        schema.Kind
}

func (j Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	return filepath.Base(j.Source)
}

// Result is the terminal status of one job.
type Result struct {
	Name        string
	Source      string
	Destination string
	State       report.State
	Lines       int64 // lines read, blank and broken ones included
	Rows        int64 // rows written; always Lines - Undecodable
	Undecodable int64
	Duration    time.Duration
	Err         error
}

func (r Result) String() string {
	if r.State == report.Failed && r.Err != nil {
		return fmt.Sprintf("%s(%s): %v", r.State, r.Name, r.Err)
	}
	return fmt.Sprintf("%s(%s)", r.State, r.Name)
}

// Failed reports whether any job in the batch failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.State == report.Failed {
			return true
		}
	}
	return false
}

// Summary renders one line per job plus a totals line.
func Summary(results []Result) string {
	var b strings.Builder
	var done, skipped, failed int
	var rows, bad int64
	for _, r := range results {
		switch r.State {
		case report.Completed:
			done++
			rows += r.Rows
			bad += r.Undecodable
			fmt.Fprintf(&b, "  %-40s lines=%s rows=%s undecodable=%s in %s -> %s\n",
				r.String(), report.Count(r.Lines), report.Count(r.Rows), report.Count(r.Undecodable),
				report.Seconds(r.Duration), r.Destination)
		case report.Skipped:
			skipped++
			fmt.Fprintf(&b, "  %-40s source not found: %s\n", r.String(), r.Source)
		default:
			failed++
			fmt.Fprintf(&b, "  %s\n", r.String())
		}
	}
	fmt.Fprintf(&b, "convert: %d completed, %d skipped, %d failed; %s rows written, %s undecodable lines dropped",
		done, skipped, failed, report.Count(rows), report.Count(bad))
	return b.String()
}
