package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"redditetl/internal/config"
	"redditetl/internal/convert"
	"redditetl/internal/iox"
	"redditetl/internal/logger"
	"redditetl/internal/merge"
	"redditetl/internal/parquetx"
	"redditetl/internal/plan"
	"redditetl/internal/report"
)

var version = "v1.0"

type runOpts struct {
	stage      string
	workers    int
	noProgress bool
}

func main() {
	stage := flag.String("stage", "all", "Stage: convert | combine | parquet | all (convert then combine)")
	planPath := flag.String("jobs", "", "Job plan file (.yaml or .json); default from ETL_PLAN or the built-in table")
	workers := flag.Int("workers", 0, "Parallel conversion workers (0 = ETL_WORKERS or one per CPU)")
	schedule := flag.String("schedule", "", "Cron expression; run the stage on this schedule instead of once")
	noProgress := flag.Bool("no-progress", false, "Disable the conversion progress bar")
	showPlan := flag.Bool("plan", false, "Show plan and exit")
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
	log := logger.Named("etl")

	if *planPath != "" {
		cfg.PlanPath = *planPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	p, err := plan.Load(cfg.PlanPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load plan")
	}
	if err := p.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid plan")
	}

	if *showPlan {
		printPlan(os.Stdout, cfg, p, *stage)
		return
	}

	opts := runOpts{stage: *stage, workers: cfg.Workers, noProgress: *noProgress}
	switch opts.stage {
	case "convert", "combine", "parquet", "all":
	default:
		log.Fatal().Str("stage", opts.stage).Msg("unknown stage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *schedule != "" {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddFunc(*schedule, func() {
			if !run(ctx, cfg, p, opts) {
				log.Error().Msg("scheduled run finished with failures")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", *schedule).Msg("bad schedule")
		}
		log.Info().Str("schedule", *schedule).Str("stage", opts.stage).Msg("scheduler started")
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		log.Info().Msg("scheduler stopped")
		return
	}

	if !run(ctx, cfg, p, opts) {
		os.Exit(1)
	}
}

// run executes the selected stage(s) once and reports whether every unit
// finished without failing. Combine never starts before every conversion has.
func run(ctx context.Context, cfg *config.Config, p *plan.Plan, opts runOpts) bool {
	log := logger.Named("etl")
	start := time.Now()
	ok := true

	if opts.stage == "convert" || opts.stage == "all" {
		var bar io.Writer
		if !opts.noProgress {
			bar = os.Stderr
		}
		ex := convert.NewExecutor(cfg, convert.Options{Workers: opts.workers, Progress: bar})
		results := ex.Run(ctx, p.Jobs())
		fmt.Println("==== Conversion Summary ====")
		fmt.Println(convert.Summary(results))
		if convert.Failed(results) {
			ok = false
		}
	}

	if ctx.Err() == nil && (opts.stage == "combine" || opts.stage == "all") {
		results := merge.New(cfg).MergeAll(ctx, p.Pairs())
		fmt.Println("==== Combine Summary ====")
		fmt.Println(merge.Summary(results))
		if merge.Failed(results) {
			ok = false
		}
	}

	if ctx.Err() == nil && opts.stage == "parquet" {
		if !runParquet(ctx, cfg, p) {
			ok = false
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("interrupted")
		ok = false
	}
	log.Info().Str("took", report.Seconds(time.Since(start))).Bool("ok", ok).Msg("completed")
	return ok
}

func runParquet(ctx context.Context, cfg *config.Config, p *plan.Plan) bool {
	log := logger.Named("parquet")
	ok := true
	m := merge.New(cfg)
	for _, pair := range p.Pairs() {
		pair = m.Resolve(pair)
		exists, err := iox.Exists(pair.Output)
		if err != nil {
			log.Error().Err(err).Str("input", pair.Output).Msg("FAILED")
			ok = false
			continue
		}
		if !exists {
			log.Warn().Str("input", pair.Output).Msg("combined table not found, skipping")
			continue
		}
		out := parquetx.PathFor(pair.Output)
		rows, err := parquetx.ExportCSV(ctx, pair.Output, out, pair.Kind)
		if err != nil {
			log.Error().Err(err).Str("input", pair.Output).Msg("FAILED")
			ok = false
			continue
		}
		fmt.Printf("  COMPLETED(%s) rows=%s -> %s\n", pair.Name, report.Count(rows), out)
	}
	return ok
}

func printPlan(w io.Writer, cfg *config.Config, p *plan.Plan, stage string) {
	fmt.Fprintf(w, "==== Reddit ETL %s Execution Plan ====\n", version)
	fmt.Fprintf(w, "Stage              : %s\n", stage)
	fmt.Fprintf(w, "Raw dir            : %s\n", cfg.RawDir)
	fmt.Fprintf(w, "Processed dir      : %s\n", cfg.ProcessedDir)
	fmt.Fprintf(w, "Combined dir       : %s\n", cfg.CombinedDir)
	fmt.Fprintf(w, "Workers            : %d\n", convert.Workers(cfg.Workers, len(p.Convert)))
	if cfg.PlanPath != "" {
		fmt.Fprintf(w, "Plan file          : %s\n", cfg.PlanPath)
	}
	fmt.Fprintln(w, "Convert:")
	for _, c := range p.Convert {
		fmt.Fprintf(w, "  [%-8s] %s -> %s\n", c.Kind, cfg.RawPath(c.Source), cfg.ProcessedPath(c.Destination))
	}
	fmt.Fprintln(w, "Combine:")
	for _, c := range p.Combine {
		fmt.Fprintf(w, "  [%-8s] %s + %s -> %s\n", c.Kind,
			cfg.ProcessedPath(c.First), cfg.ProcessedPath(c.Second), cfg.CombinedPath(c.Output))
	}
}
