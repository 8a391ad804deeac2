// Package merge unions two CSV tables of the same record kind.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"redditetl/internal/config"
	"redditetl/internal/csvin"
	"redditetl/internal/csvout"
	"redditetl/internal/iox"
	"redditetl/internal/logger"
	"redditetl/internal/report"
	"redditetl/internal/schema"
)

// ErrSchemaMismatch is returned when the two inputs have different headers.
var ErrSchemaMismatch = errors.New("merge: input tables do not share a schema")

// Pair names two tables to union into Output. For the comment kind the
// link_id and parent_id columns lose their type prefix.
type Pair struct {
	Name   string
	First  string
	Second string
	Output string
	Kind   schema.Kind
}

func (p Pair) label() string {
	if p.Name != "" {
		return p.Name
	}
	return filepath.Base(p.Output)
}

type Result struct {
	Name       string
	Output     string
	State      report.State
	Missing    []string
	RowsFirst  int64
	RowsSecond int64
	Rows       int64
	Normalized bool
	Duration   time.Duration
	Err        error
}

func (r Result) String() string {
	if r.State == report.Failed && r.Err != nil {
		return fmt.Sprintf("%s(%s): %v", r.State, r.Name, r.Err)
	}
	return fmt.Sprintf("%s(%s)", r.State, r.Name)
}

// Merger resolves relative inputs against the processed root and outputs
// against the combined root.
type Merger struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Merger {
	return &Merger{cfg: cfg}
}

func (m *Merger) Resolve(p Pair) Pair {
	p.Name = p.label()
	p.First = m.cfg.ProcessedPath(p.First)
	p.Second = m.cfg.ProcessedPath(p.Second)
	p.Output = m.cfg.CombinedPath(p.Output)
	return p
}

func (m *Merger) Merge(ctx context.Context, p Pair) Result {
	return MergeFiles(ctx, m.Resolve(p))
}

// MergeAll runs pairs one after another; a skipped or failed pair does not
// stop the rest.
func (m *Merger) MergeAll(ctx context.Context, pairs []Pair) []Result {
	out := make([]Result, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, m.Merge(ctx, p))
	}
	return out
}

// MergeFiles merges a pair whose paths are already resolved.
func MergeFiles(ctx context.Context, p Pair) (res Result) {
	start := time.Now()
	res = Result{Name: p.label(), Output: p.Output}
	defer func() { res.Duration = time.Since(start) }()
	log := logger.Named("merge").With().Str("merge", res.Name).Logger()

	for _, in := range []string{p.First, p.Second} {
		ok, err := iox.Exists(in)
		if err != nil {
			return failed(res, fmt.Errorf("stat %s: %w", in, err))
		}
		if !ok {
			res.Missing = append(res.Missing, in)
		}
	}
	if len(res.Missing) > 0 {
		log.Warn().Strs("missing", res.Missing).Msg("could not find one or both input files, skipping")
		res.State = report.Skipped
		return res
	}

	log.Info().Str("first", filepath.Base(p.First)).Str("second", filepath.Base(p.Second)).Msg("combining")

	a, err := iox.OpenAuto(p.First)
	if err != nil {
		return failed(res, err)
	}
	defer a.Close()
	b, err := iox.OpenAuto(p.Second)
	if err != nil {
		return failed(res, err)
	}
	defer b.Close()

	ra := csvin.New(a, csvin.Options{})
	rb := csvin.New(b, csvin.Options{})
	header, err := sharedHeader(ra, rb, p)
	if err != nil {
		return failed(res, err)
	}

	var ids *idColumns
	if p.Kind == schema.Comment {
		c, err := locateIDs(header)
		if err != nil {
			return failed(res, err)
		}
		ids = &c
		res.Normalized = true
		log.Info().Msg("comment table: cleaning link_id and parent_id prefixes")
	}

	out, err := iox.CreateAtomic(p.Output)
	if err != nil {
		return failed(res, err)
	}
	defer out.Abort()

	w, err := csvout.NewWithHeader(out, header)
	if err != nil {
		return failed(res, err)
	}
	if res.RowsFirst, err = copyRows(ctx, ra, w, ids, p.First); err != nil {
		return failed(res, err)
	}
	if res.RowsSecond, err = copyRows(ctx, rb, w, ids, p.Second); err != nil {
		return failed(res, err)
	}
	if err := w.Flush(); err != nil {
		return failed(res, fmt.Errorf("flush: %w", err))
	}
	if err := out.Commit(); err != nil {
		return failed(res, err)
	}

	res.Rows = w.Rows()
	res.State = report.Completed
	log.Info().
		Str("output", filepath.Base(p.Output)).
		Str("rows", report.Count(res.Rows)).
		Str("took", report.Seconds(time.Since(start))).
		Msg("DONE")
	return res
}

func sharedHeader(ra, rb *csvin.Reader, p Pair) ([]string, error) {
	ha, err := ra.Header()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", p.First, emptyAsErr(err))
	}
	hb, err := rb.Header()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", p.Second, emptyAsErr(err))
	}
	if !schema.FieldSchema(ha).Equal(hb) {
		return nil, fmt.Errorf("%w: %s has [%s], %s has [%s]", ErrSchemaMismatch,
			filepath.Base(p.First), strings.Join(ha, ","),
			filepath.Base(p.Second), strings.Join(hb, ","))
	}
	return append([]string(nil), ha...), nil
}

func emptyAsErr(err error) error {
	if err == io.EOF {
		return errors.New("table is empty (no header)")
	}
	return err
}

func locateIDs(header []string) (idColumns, error) {
	fs := schema.FieldSchema(header)
	c := idColumns{link: fs.Index(schema.ColLinkID), parent: fs.Index(schema.ColParentID)}
	if c.link < 0 || c.parent < 0 {
		return c, fmt.Errorf("comment table needs %q and %q columns, header is [%s]",
			schema.ColLinkID, schema.ColParentID, strings.Join(header, ","))
	}
	return c, nil
}

func copyRows(ctx context.Context, r *csvin.Reader, w *csvout.Writer, ids *idColumns, src string) (int64, error) {
	var n int64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read %s: %w", filepath.Base(src), err)
		}
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		if ids != nil {
			ids.apply(rec)
		}
		if err := w.WriteRow(rec); err != nil {
			return n, err
		}
		n++
	}
}

func failed(res Result, err error) Result {
	res.State = report.Failed
	res.Err = err
	logger.Named("merge").Error().Err(err).Str("merge", res.Name).Msg("FAILED")
	return res
}

// Summary renders one line per merge plus a totals line.
func Summary(results []Result) string {
	var b strings.Builder
	var done, skipped, failedN int
	for _, r := range results {
		switch r.State {
		case report.Completed:
			done++
			fmt.Fprintf(&b, "  %-32s %s + %s = %s rows in %s -> %s\n", r.String(),
				report.Count(r.RowsFirst), report.Count(r.RowsSecond), report.Count(r.Rows),
				report.Seconds(r.Duration), r.Output)
		case report.Skipped:
			skipped++
			fmt.Fprintf(&b, "  %-32s missing input: %s\n", r.String(), strings.Join(r.Missing, ", "))
		default:
			failedN++
			fmt.Fprintf(&b, "  %s\n", r.String())
		}
	}
	fmt.Fprintf(&b, "combine: %d completed, %d skipped, %d failed", done, skipped, failedN)
	return b.String()
}

// Failed reports whether any merge failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.State == report.Failed {
			return true
		}
	}
	return false
}
