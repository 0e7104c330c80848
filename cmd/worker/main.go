package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/keggflow/internal/pipeline"
	"github.com/OFFIS-RIT/keggflow/internal/queue"
	"github.com/OFFIS-RIT/keggflow/internal/timing"
	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/leaselock"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := pipeline.LoadConfig()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: util.GetEnvString("LOG_FORMAT", console.FormatText),
		Prefix: "worker",
	}))
	if err != nil {
		logger.Fatal("[Worker] Failed to load configuration", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("[Worker] Invalid configuration", "err", err)
	}

	params := pipeline.NewPipelineParams{
		Layout: cfg.Layout(),
		Fetching: pipeline.Fetching{
			Client:    cfg.Client(),
			BatchSize: cfg.BatchSize,
		},
	}

	// Stage locks need Postgres; without it the worker relies on prefetch 1.
	if dbURL := util.GetEnv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("[Worker] Unable to connect to database", "err", err)
		}
		defer pool.Close()
		params.Locker = leaselock.NewStageLocker(leaselock.New(pool), leaselock.Options{})
		params.Recorder = timing.NewRecorder(pool)
	} else {
		logger.Warn("[Worker] DATABASE_URL not set, running without stage locks")
	}
	p := pipeline.NewPipeline(params)

	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("[Worker] Unable to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Worker] Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.StageQueue}); err != nil {
		logger.Fatal("[Worker] Failed to set up queues", "err", err)
	}

	// One unacked message at a time keeps stage runs sequential.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("[Worker] Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.StageQueue,
		queue.StageQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("[Worker] Failed to start consuming", "queue", queue.StageQueue, "err", err)
	}

	logger.Info("[Worker] Listening for messages", "queue", queue.StageQueue, "stages", p.StageNames())
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Worker] Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Worker] Message channel closed")
				return
			}
			queue.ProcessStageMessage(ctx, p, ch, queue.FromAMQP(&msg), queue.StageQueue)
			logger.Info("[Worker] Waiting for next message")
		}
	}
}
