// Command offlinerd is the daemon entrypoint: it supervises one worker
// subprocess and serves the HTTP edge described in spec.md §6. Operators run
// this binary directly; offlinerctl talks to it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/quota"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/server"
	"github.com/fvitu/offliner/internal/shared"
	"github.com/fvitu/offliner/internal/supervisor"
)

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:  "offlinerd",
		Usage: "Run the offliner supervisor and HTTP edge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "worker-binary",
				Usage: "Path to the offliner-worker executable",
				Value: "./offliner-worker",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"), cmd.String("worker-binary"), logger)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("offlinerd exited with error", "err", err)
	}
}

func run(ctx context.Context, configPath, workerBinary string, logger *log.Logger) error {
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

	backend := queue.NewRedisBackend(rdb)
	defer backend.Close()
	progressStore := progress.NewRedisStore(rdb)

	tracker := quota.New(quota.Limits{
		MaxDownloadsPerHour:       cfg.Quota.MaxDownloadsPerHour,
		MaxDownloadsPerDay:        cfg.Quota.MaxDownloadsPerDay,
		MaxDurationMinutesPerHour: cfg.Quota.MaxDurationMinutesPerHour,
		MaxDurationMinutesPerDay:  cfg.Quota.MaxDurationMinutesPerDay,
		MaxContentDurationMinutes: cfg.Quota.MaxContentDurationMinutes,
		MaxPlaylistItems:          cfg.Quota.MaxPlaylistItems,
	}, nil)

	svc := server.NewService(backend, progressStore, tracker, logger, 30*time.Second)
	handlers := server.New(svc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: handlers.Router()}

	brokerAddr, err := redisAddr(cfg.Broker.RedisURL)
	if err != nil {
		return fmt.Errorf("parse broker address: %w", err)
	}

	sup := supervisor.New(brokerAddr, workerBinary, []string{"--config", configPath}, logger)
	if err := sup.EnsureBroker(nil); err != nil {
		return fmt.Errorf("broker not reachable: %w", err)
	}

	return serveAlongsideSupervisor(ctx, httpServer, sup, logger)
}

// redisAddr extracts the host:port a plain TCP dial can use from a redis://
// connection URL, for the Supervisor's own broker reachability check.
func redisAddr(url string) (string, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return "", err
	}
	return opts.Addr, nil
}

// serveAlongsideSupervisor runs the HTTP edge and the Supervisor's own
// launch-worker-and-wait loop side by side. The Supervisor already owns
// SIGINT/SIGTERM handling and worker teardown (supervisor.Supervisor.Run);
// offlinerd just needs to bring the HTTP server down with it, in either
// direction.
func serveAlongsideSupervisor(ctx context.Context, httpServer *http.Server, sup *supervisor.Supervisor, logger *log.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	supErr := make(chan error, 1)
	go func() {
		supErr <- sup.Run(ctx)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
		sup.Stop()
		<-supErr
	case err := <-supErr:
		if err != nil {
			logger.Error("supervisor exited", "err", err)
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "err", err)
	}
	return runErr
}
