// Package load copies combined CSV tables into MySQL.
package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"redditetl/internal/csvin"
	"redditetl/internal/db"
	"redditetl/internal/iox"
	"redditetl/internal/logger"
	"redditetl/internal/report"
	"redditetl/internal/schema"
)

// Default target tables.
const (
	CommentsTable = "reddit_comments"
	PostsTable    = "reddit_posts"
)

// TableFor is the default target table of a kind.
func TableFor(k schema.Kind) string {
	switch k {
	case schema.Comment:
		return CommentsTable
	case schema.Post:
		return PostsTable
	}
	return ""
}

// ErrHeader is returned when a CSV header does not match the kind's schema.
var ErrHeader = errors.New("load: header does not match schema")

type Options struct {
	Kind    schema.Kind
	Chunk   int  // rows per INSERT; 2000 when zero, capped by the placeholder limit
	Replace bool // DELETE FROM table before inserting
	DryRun  bool // read and validate only
}

// CheckTables returns the tables missing from the current schema.
func CheckTables(ctx context.Context, conn *sql.DB, tables []string) ([]string, error) {
	s, err := db.CurrentSchema(ctx, conn)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0, len(tables))
	for _, t := range tables {
		ok, err := tableExists(ctx, conn, s, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

func tableExists(ctx context.Context, conn *sql.DB, schemaName, table string) (bool, error) {
	const q = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
		LIMIT 1
	`
	var c int
	if err := conn.QueryRowContext(ctx, q, schemaName, table).Scan(&c); err != nil {
		return false, err
	}
	return c > 0, nil
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// BuildInsert returns a multi-row INSERT for nrows rows of cols.
func BuildInsert(table string, cols []string, nrows int) string {
	if nrows <= 0 || len(cols) == 0 {
		return ""
	}
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quoteIdent(c)
	}
	pl := "(" + strings.TrimRight(strings.Repeat("?,", len(cols)), ",") + ")"
	vals := strings.TrimRight(strings.Repeat(pl+",", nrows), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", quoteIdent(table), strings.Join(q, ","), vals)
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Table streams csvPath into table in chunks and returns the rows loaded.
// Inserts run in one transaction so a failed load leaves the table as it was.
func Table(ctx context.Context, conn *sql.DB, csvPath, table string, opts Options) (int64, error) {
	log := logger.Named("load").With().Str("table", table).Logger()
	start := time.Now()

	f, err := iox.OpenAuto(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csvin.New(f, csvin.Options{})
	header, err := r.Header()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: empty file", csvPath)
		}
		return 0, fmt.Errorf("%s: header: %w", csvPath, err)
	}
	if want := schema.For(opts.Kind); want != nil && !want.Equal(header) {
		return 0, fmt.Errorf("%w: %s has %v, want %v", ErrHeader, csvPath, header, []string(want))
	}
	cols := append([]string(nil), header...)

	if opts.DryRun {
		var n int64
		for {
			if _, err := r.Next(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return n, fmt.Errorf("%s line %d: %w", csvPath, r.Line(), err)
			}
			n++
		}
		log.Info().Str("rows", report.Count(n)).Msg("dry run, nothing written")
		return n, nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if opts.Replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	n, err := insertAll(ctx, tx, r, table, cols, opts.Chunk, csvPath)
	if err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	log.Info().
		Str("rows", report.Count(n)).
		Str("took", report.Seconds(time.Since(start))).
		Msg("loaded")
	return n, nil
}

// MySQL rejects prepared statements with more placeholders than this.
const maxPlaceholders = 65535

// chunkSize applies the default and keeps chunk*ncols within maxPlaceholders.
func chunkSize(chunk, ncols int) int {
	if chunk <= 0 {
		chunk = 2000
	}
	if ncols > 0 && chunk*ncols > maxPlaceholders {
		chunk = maxPlaceholders / ncols
	}
	if chunk < 1 {
		chunk = 1
	}
	return chunk
}

func insertAll(ctx context.Context, ex Execer, r *csvin.Reader, table string, cols []string, chunk int, src string) (int64, error) {
	chunk = chunkSize(chunk, len(cols))
	var (
		total int64
		batch = make([]any, 0, chunk*len(cols))
		rows  int
		query = BuildInsert(table, cols, chunk)
	)
	flush := func() error {
		if rows == 0 {
			return nil
		}
		q := query
		if rows != chunk {
			q = BuildInsert(table, cols, rows)
		}
		if _, err := ex.ExecContext(ctx, q, batch...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		total += int64(rows)
		batch = batch[:0]
		rows = 0
		return nil
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("%s line %d: %w", src, r.Line(), err)
		}
		for _, v := range rec {
			batch = append(batch, v)
		}
		rows++
		if rows == chunk {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
