// Command worker dequeues jobs from the Task Broker and runs them through
// the Job Pipeline, one at a time, until its parent process signals it to
// stop. It is launched as a subprocess by offlinerd's Supervisor and is
// never invoked directly by an operator.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/fvitu/offliner/internal/engine"
	"github.com/fvitu/offliner/internal/pipeline"
	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/resolver"
	"github.com/fvitu/offliner/internal/shared"
	"github.com/fvitu/offliner/internal/store"
)

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:  "offliner-worker",
		Usage: "Dequeue and execute download jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"), logger)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("worker exited with error", "err", err)
	}
}

func run(ctx context.Context, configPath string, logger *log.Logger) error {
	cfg := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	shared.ApplyEnv(cfg, os.LookupEnv)

	rdb, err := shared.NewRedisClient(cfg.Broker.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	p, err := buildPipeline(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer p.ledger.Close()

	backend := queue.NewRedisBackend(rdb)
	defer backend.Close()

	runLoop(ctx, backend, p.pipeline, p.ledger, logger)
	return nil
}

type wiredPipeline struct {
	pipeline *pipeline.Pipeline
	ledger   *store.Ledger
}

func buildPipeline(ctx context.Context, cfg *shared.Config, rdb *redis.Client, logger *log.Logger) (*wiredPipeline, error) {
	progressStore := progress.NewRedisStore(rdb)

	general := resolver.NewExecGeneralClient("yt-dlp")
	var catalog resolver.CatalogClient
	if cfg.Credentials.PlatformB.ClientID != "" {
		catalog = resolver.NewHTTPCatalogClient(ctx, cfg.Credentials.PlatformB.ClientID, cfg.Credentials.PlatformB.ClientSecret, "https://accounts.spotify.com/api/token")
	}
	res := resolver.New(general, catalog)

	eng := engine.NewEngine(engine.NewExecMediaTool("yt-dlp"))

	ledger, err := store.NewLedger(cfg.Database.Path, 64, logger)
	if err != nil {
		return nil, fmt.Errorf("open job history ledger: %w", err)
	}
	go ledger.Run(ctx)

	pl := pipeline.New(progressStore, res, eng, ledger, logger, cfg.Paths.TempDir, cfg.Paths.OutputDir)
	return &wiredPipeline{pipeline: pl, ledger: ledger}, nil
}

// runLoop dequeues one job at a time and runs it to completion, acking on
// success and nacking on a pipeline-level failure so the job is redelivered.
// A job-domain failure (bad input, all downloads failed) is still acked: the
// Pipeline already reported it through the Progress Store and ledger, and
// redelivering it would just fail again (spec.md §4.5).
func runLoop(ctx context.Context, backend queue.Backend, pl *pipeline.Pipeline, ledger *store.Ledger, logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		select {
		case <-sigCh:
			logger.Info("worker received shutdown signal")
			stop()
		case <-stopCtx.Done():
		}
	}()

	for {
		select {
		case <-stopCtx.Done():
			return
		default:
		}

		job, ok, err := backend.Dequeue(stopCtx, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("dequeue failed", "err", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, queue.Timeout)
		err = pl.Execute(jobCtx, job)
		cancel()

		if err != nil {
			logger.Error("pipeline execution failed", "request_id", job.RequestID, "err", err)
			if nackErr := backend.Nack(ctx, job.RequestID); nackErr != nil {
				logger.Error("nack failed", "request_id", job.RequestID, "err", nackErr)
			}
			continue
		}

		if ackErr := backend.Ack(ctx, job.RequestID); ackErr != nil {
			logger.Error("ack failed", "request_id", job.RequestID, "err", ackErr)
		}
	}
}
