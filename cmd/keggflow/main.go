package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/OFFIS-RIT/keggflow/internal/pipeline"
	"github.com/OFFIS-RIT/keggflow/internal/queue"
	"github.com/OFFIS-RIT/keggflow/internal/storage"
	"github.com/OFFIS-RIT/keggflow/internal/timing"
	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/leaselock"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/logger/console"
	"github.com/OFFIS-RIT/keggflow/pkg/logger/file"
	"github.com/OFFIS-RIT/keggflow/pkg/store"
	pgxstore "github.com/OFFIS-RIT/keggflow/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `usage: keggflow <command> [flags]

stages:
  extract, validate, link, unify, fetch -kind reaction|compound,
  parse-reactions, closure, parse-compounds
pipeline:
  run [-force] [-stage name]
infrastructure:
  migrate, load, publish [-prefix p] [-prune], enqueue -stage name [-force]

Run "keggflow <command> -h" for the flags of a command.
`

// stageCommands are subcommands that run exactly one stage.
var stageCommands = []string{
	pipeline.StageExtract,
	pipeline.StageValidate,
	pipeline.StageLink,
	pipeline.StageUnify,
	pipeline.StageParseReactions,
	pipeline.StageClosure,
	pipeline.StageParseCompounds,
}

func main() {
	util.LoadEnv()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := pipeline.LoadConfig()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: util.GetEnvString("LOG_FORMAT", console.FormatText),
	}))
	if err != nil {
		logger.Fatal("[Main] Failed to load configuration", "err", err)
	}

	if err := run(ctx, os.Args[1], os.Args[2:], cfg); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal("[Main] Command failed", "command", os.Args[1], "err", err)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg pipeline.Config) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	bindConfig(fs, &cfg)

	switch {
	case slices.Contains(stageCommands, cmd):
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withPipeline(ctx, cfg, func(p *pipeline.Pipeline) error {
			return p.RunStage(ctx, cmd, true)
		})

	case cmd == "fetch":
		kind := fs.String("kind", "reaction", "record kind to fetch: reaction or compound")
		if err := fs.Parse(args); err != nil {
			return err
		}
		stage, ok := fetchStage(*kind)
		if !ok {
			return fmt.Errorf("unknown fetch kind %q", *kind)
		}
		return withPipeline(ctx, cfg, func(p *pipeline.Pipeline) error {
			return p.RunStage(ctx, stage, true)
		})

	case cmd == "run":
		force := fs.Bool("force", false, "rerun stages whose outputs are fresh")
		stage := fs.String("stage", "", "run only this stage")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withPipeline(ctx, cfg, func(p *pipeline.Pipeline) error {
			if *stage != "" {
				return p.RunStage(ctx, *stage, *force)
			}
			return p.Run(ctx, *force)
		})

	case cmd == "migrate":
		source := fs.String("source", util.GetEnvString("MIGRATIONS_URL", "file://migrations"), "migration source URL")
		if err := fs.Parse(args); err != nil {
			return err
		}
		dbURL, err := databaseURL()
		if err != nil {
			return err
		}
		return pgxstore.Migrate(dbURL, *source)

	case cmd == "load":
		tables := fs.String("tables", "", "comma separated tables to load (default all)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return load(ctx, cfg, *tables)

	case cmd == "publish":
		prefix := fs.String("prefix", "", "object key prefix")
		prune := fs.Bool("prune", false, "delete objects under prefix that are no longer produced")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return publish(ctx, cfg, *prefix, *prune)

	case cmd == "enqueue":
		stage := fs.String("stage", queue.StageAll, `stage to run, or "all"`)
		force := fs.Bool("force", false, "rerun stages whose outputs are fresh")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return enqueue(ctx, *stage, *force)
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

// withPipeline validates cfg, tees the log into the run log and builds the
// pipeline. Stage locks are used when DATABASE_URL is set.
func withPipeline(ctx context.Context, cfg pipeline.Config, fn func(p *pipeline.Pipeline) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: util.GetEnvString("LOG_FORMAT", console.FormatText),
	}))

	layout := cfg.Layout()
	runLog, err := file.NewFileLogger(file.FileLoggerParams{
		Path:  layout.RunLog,
		Debug: cfg.Debug,
	})
	if err != nil {
		return err
	}
	defer runLog.Close()
	logger.Add(runLog)

	params := pipeline.NewPipelineParams{
		Layout: layout,
		Fetching: pipeline.Fetching{
			Client:    cfg.Client(),
			BatchSize: cfg.BatchSize,
		},
	}
	if dbURL := util.GetEnv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer pool.Close()
		params.Locker = leaselock.NewStageLocker(leaselock.New(pool), leaselock.Options{})
		params.Recorder = timing.NewRecorder(pool)
	}

	return fn(pipeline.NewPipeline(params))
}

func databaseURL() (string, error) {
	dbURL := util.GetEnv("DATABASE_URL")
	if dbURL == "" {
		return "", errors.New("DATABASE_URL is not set")
	}
	return dbURL, nil
}

func load(ctx context.Context, cfg pipeline.Config, only string) error {
	dbURL, err := databaseURL()
	if err != nil {
		return err
	}

	specs := store.Catalog
	if only != "" {
		specs = nil
		for _, name := range strings.Split(only, ",") {
			spec, err := store.SpecByName(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()

	files := cfg.Layout().Tables()
	db := pgxstore.NewTableDBStorage(pool)
	for _, spec := range specs {
		if _, err := pgxstore.LoadFile(ctx, db, spec, files[spec.Name]); err != nil {
			return err
		}
	}
	return nil
}

func publish(ctx context.Context, cfg pipeline.Config, prefix string, prune bool) error {
	s3cfg := storage.S3ConfigFromEnv()
	client, err := storage.NewS3Client(ctx, s3cfg)
	if err != nil {
		return err
	}
	bucket, err := storage.NewBucket(client, s3cfg.Bucket)
	if err != nil {
		return err
	}

	result, err := storage.Publish(ctx, bucket, storage.PublishParams{
		Prefix: prefix,
		Files:  cfg.Layout().Published(),
		Prune:  prune,
	})
	if err != nil {
		return err
	}
	logger.Info("[Publish] Done",
		"bucket", s3cfg.Bucket,
		"uploaded", len(result.Uploaded),
		"skipped", len(result.Skipped),
		"pruned", len(result.Pruned),
	)
	return nil
}

func enqueue(ctx context.Context, stage string, force bool) error {
	stages := pipeline.NewPipeline(pipeline.NewPipelineParams{}).StageNames()
	if stage != queue.StageAll && !slices.Contains(stages, stage) {
		return fmt.Errorf("unknown stage %q", stage)
	}

	conn, err := queue.Init(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.StageQueue}); err != nil {
		return err
	}
	id, err := queue.Enqueue(ch, stage, force)
	if err != nil {
		return err
	}
	logger.Info("[Enqueue] Stage queued", "id", id, "stage", stage, "force", force)
	return nil
}
