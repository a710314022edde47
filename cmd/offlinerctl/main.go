// Command offlinerctl is the operator CLI: it inspects queue and quota
// state and launches the dashboard described by spec.md §4.8. It never runs
// jobs itself; that is offlinerd's and offliner-worker's job.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/shared"
	"github.com/fvitu/offliner/internal/tui"
)

// Runner holds the dependencies every subcommand's action needs, mirroring
// the CLI's own Runner layout.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	backend queue.Backend
	store   progress.Store
	rdb     *redisCloser
}

// redisCloser avoids importing go-redis's concrete type into this file's
// exported surface; it is closed once the command finishes.
type redisCloser struct {
	close func() error
}

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:    "offlinerctl",
		Usage:   "Inspect and operate a running offliner deployment",
		Version: "0.1.0",
		Commands: []*cli.Command{
			configCommand(logger),
			queueCommand(logger),
			tuiCommand(logger),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("offlinerctl exited with error", "err", err)
	}
}

// configFlag is declared on every leaf command, mirroring the teacher
// repo's per-command flag style (cmd/setup.go, cmd/spotify.go).
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func loadRunner(cmd *cli.Command, logger *log.Logger) (*Runner, error) {
	configPath := cmd.String("config")
	cfg := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	shared.ApplyEnv(cfg, os.LookupEnv)

	rdb, err := shared.NewRedisClient(cfg.Broker.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Runner{
		config:  cfg,
		logger:  logger,
		backend: queue.NewRedisBackend(rdb),
		store:   progress.NewRedisStore(rdb),
		rdb:     &redisCloser{close: rdb.Close},
	}, nil
}

func (r *Runner) Close() {
	if r.rdb != nil {
		_ = r.rdb.close()
	}
}

// configCommand mirrors the teacher's setup command: it creates a
// config.toml from the embedded template when none exists yet.
func configCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the offliner configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create config.toml from the bundled template if it does not exist",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.String("config")
					if _, err := os.Stat(path); err == nil {
						logger.Info("config file already exists", "path", path)
						return nil
					}
					if err := shared.CreateConfigFile(path); err != nil {
						return fmt.Errorf("create config file: %w", err)
					}
					logger.Info("config file created", "path", path)
					return nil
				},
			},
		},
	}
}

// queueCommand inspects broker health and depth without touching any job.
func queueCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the Task Broker + Queue",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Print queue depth, broker health, and in-flight jobs",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					runner, err := loadRunner(cmd, logger)
					if err != nil {
						return err
					}
					defer runner.Close()
					return printQueueStatus(ctx, runner)
				},
			},
		},
	}
}

func printQueueStatus(ctx context.Context, r *Runner) error {
	length, err := r.backend.Length(ctx)
	if err != nil {
		return fmt.Errorf("queue length: %w", err)
	}
	health := r.backend.Health(ctx)
	inFlight, err := r.backend.InFlight(ctx)
	if err != nil {
		return fmt.Errorf("in-flight jobs: %w", err)
	}

	fmt.Printf("queue length:   %d\n", length)
	fmt.Printf("broker healthy: %t\n", health.Healthy)
	if health.Detail != "" {
		fmt.Printf("broker detail:  %s\n", health.Detail)
	}
	fmt.Printf("in-flight jobs: %d\n", len(inFlight))
	for _, job := range inFlight {
		rec, err := r.store.Get(ctx, job.RequestID)
		phase := "unknown"
		if err == nil {
			phase = string(rec.Phase)
		}
		fmt.Printf("  %s  phase=%-12s input=%q\n", job.RequestID, phase, job.RawInput)
	}
	return nil
}

// dashboardCommand launches the interactive bubbletea dashboard.
func tuiCommand(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the operator TUI dashboard",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runner, err := loadRunner(cmd, logger)
			if err != nil {
				return err
			}
			defer runner.Close()
			return tui.Run(ctx, runner.backend, runner.store)
		},
	}
}
