package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"redditetl/internal/config"
	"redditetl/internal/db"
	"redditetl/internal/iox"
	"redditetl/internal/load"
	"redditetl/internal/lock"
	"redditetl/internal/logger"
	"redditetl/internal/merge"
	"redditetl/internal/plan"
	"redditetl/internal/report"
	"redditetl/internal/schema"
)

func main() {
	var (
		flagCSV     string
		flagTable   string
		flagKind    string
		flagJobs    string
		flagChunk   int
		flagReplace bool
		flagDryRun  bool
		flagCheck   bool
	)
	flag.StringVar(&flagCSV, "csv", "", "Load a single CSV (default: every combined table in the plan)")
	flag.StringVar(&flagTable, "table", "", "Target table for -csv (default by -kind)")
	flag.StringVar(&flagKind, "kind", "", "Record kind of -csv: comment | post")
	flag.StringVar(&flagJobs, "jobs", "", "Job plan file (.yaml or .json)")
	flag.IntVar(&flagChunk, "chunk", 2000, "Rows per INSERT statement")
	flag.BoolVar(&flagReplace, "replace", false, "DELETE existing rows before loading")
	flag.BoolVar(&flagDryRun, "dry-run", false, "Do not write to DB (just validate and count rows)")
	flag.BoolVar(&flagCheck, "check-schema", false, "Only check that target tables exist and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Fields: map[string]string{"run_id": uuid.NewString()},
	})
	log := logger.Named("load")
	if flagJobs != "" {
		cfg.PlanPath = flagJobs
	}

	targets, err := buildTargets(cfg, flagCSV, flagTable, flagKind)
	if err != nil {
		log.Fatal().Err(err).Msg("targets")
	}

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	defer conn.Close()

	tables := make([]string, 0, len(targets))
	for _, t := range targets {
		tables = append(tables, t.table)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		missing, err := load.CheckTables(ctx, conn, tables)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("schema check")
		}
		if len(missing) > 0 {
			log.Fatal().Strs("missing", missing).Msg("target tables missing")
		}
		log.Info().Strs("tables", tables).Msg("schema OK")
	}
	if flagCheck {
		return
	}

	failed := false
	for _, t := range targets {
		if err := loadOne(conn, t, load.Options{
			Kind:    t.kind,
			Chunk:   flagChunk,
			Replace: flagReplace,
			DryRun:  flagDryRun,
		}); err != nil {
			log.Error().Err(err).Str("table", t.table).Str("csv", t.csv).Msg("FAILED")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

type target struct {
	csv   string
	table string
	kind  schema.Kind
}

func buildTargets(cfg *config.Config, csvPath, table, kind string) ([]target, error) {
	if csvPath != "" {
		k, err := schema.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("-csv needs -kind: %w", err)
		}
		if table == "" {
			table = load.TableFor(k)
		}
		return []target{{csv: csvPath, table: table, kind: k}}, nil
	}

	p, err := plan.Load(cfg.PlanPath)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	m := merge.New(cfg)
	var out []target
	for _, pair := range p.Pairs() {
		pair = m.Resolve(pair)
		out = append(out, target{csv: pair.Output, table: load.TableFor(pair.Kind), kind: pair.Kind})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("plan has no combined tables to load")
	}
	return out, nil
}

func loadOne(conn *sql.DB, t target, opts load.Options) error {
	log := logger.Named("load")
	ok, err := iox.Exists(t.csv)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("csv", t.csv).Msg("table file not found, skipping")
		return nil
	}

	// held for the whole load; the lock lives on its own connection
	lctx, lcancel := context.WithTimeout(context.Background(), 15*time.Second)
	held, err := lock.Get(lctx, conn, lock.Key(t.table), 10)
	lcancel()
	if err != nil {
		return err
	}
	defer func() { _ = held.Release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	start := time.Now()
	n, err := load.Table(ctx, conn, t.csv, t.table, opts)
	if err != nil {
		return err
	}
	fmt.Printf("  COMPLETED(%s) rows=%s in %s\n", t.table, report.Count(n), report.Seconds(time.Since(start)))
	return nil
}
