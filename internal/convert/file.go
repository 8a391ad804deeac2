package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"redditetl/internal/csvout"
	"redditetl/internal/iox"
	"redditetl/internal/logger"
	"redditetl/internal/projector"
	"redditetl/internal/report"
	"redditetl/internal/schema"
)

const (
	readBufSize   = 1 << 20
	ctxCheckEvery = 4096
	logEvery      = 1_000_000
)

// ConvertFile runs one job whose Source and Destination are already resolved.
// A missing source is SKIPPED and leaves no destination behind; any I/O error
// is FAILED and the partially written table is discarded.
func ConvertFile(ctx context.Context, job Job) (res Result) {
	start := time.Now()
	res = Result{Name: job.label(), Source: job.Source, Destination: job.Destination}
	defer func() { res.Duration = time.Since(start) }()

	log := logger.Named("convert").With().Str("job", res.Name).Logger()

	fields := schema.For(job.Kind)
	if fields == nil {
		return failed(res, fmt.Errorf("unknown record kind %q", job.Kind))
	}

	ok, err := iox.Exists(job.Source)
	if err != nil {
		return failed(res, fmt.Errorf("stat source: %w", err))
	}
	if !ok {
		log.Warn().Str("source", job.Source).Msg("SKIPPING: cannot find source file")
		res.State = report.Skipped
		return res
	}

	log.Info().Str("source", job.Source).Str("kind", job.Kind.String()).Msg("STARTING conversion")

	in, err := iox.OpenAuto(job.Source)
	if err != nil {
		return failed(res, fmt.Errorf("open source: %w", err))
	}
	defer in.Close()

	out, err := iox.CreateAtomic(job.Destination)
	if err != nil {
		return failed(res, err)
	}
	defer out.Abort()

	w, err := csvout.NewWithHeader(out, fields.Header())
	if err != nil {
		return failed(res, err)
	}

	lines, bad, err := copyLines(ctx, in, w, projector.New(fields), func(n int64) {
		log.Debug().Str("lines", report.Count(n)).Msg("progress")
	})
	res.Lines, res.Undecodable, res.Rows = lines, bad, w.Rows()
	if err != nil {
		return failed(res, err)
	}
	if err := w.Flush(); err != nil {
		return failed(res, fmt.Errorf("flush: %w", err))
	}
	if err := out.Commit(); err != nil {
		return failed(res, err)
	}

	res.State = report.Completed
	log.Info().
		Str("lines", report.Count(res.Lines)).
		Str("rows", report.Count(res.Rows)).
		Int64("undecodable", res.Undecodable).
		Str("took", report.Seconds(time.Since(start))).
		Msg("DONE")
	return res
}

// copyLines projects every line of r into w. Lines that are not JSON objects
// are counted in bad and dropped; everything else keeps input order.
func copyLines(ctx context.Context, r io.Reader, w *csvout.Writer, p *projector.Projector, tick func(int64)) (lines, bad int64, err error) {
	br := bufio.NewReaderSize(r, readBufSize)
	for {
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			lines++
			if lines%ctxCheckEvery == 1 {
				if err := ctx.Err(); err != nil {
					return lines, bad, err
				}
			}
			row, perr := p.ProjectLine(line)
			switch {
			case perr == nil:
				if err := w.WriteRow(row); err != nil {
					return lines, bad, err
				}
			case errors.Is(perr, projector.ErrUndecodable):
				bad++
			default:
				return lines, bad, perr
			}
			if tick != nil && lines%logEvery == 0 {
				tick(lines)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return lines, bad, nil
			}
			return lines, bad, fmt.Errorf("read source: %w", rerr)
		}
	}
}

func failed(res Result, err error) Result {
	res.State = report.Failed
	res.Err = err
	logger.Named("convert").Error().Err(err).Str("job", res.Name).Msg("FAILED")
	return res
}
