// Package main serves the lookahead engine over the snake HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/logging"
	"github.com/brensch/snekahead/server"
	"github.com/brensch/snekahead/store"
)

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	defaults := server.DefaultConfig()
	listen := fs.String("listen", config.EnvOrDefault("SNEK_LISTEN", ":8080"), "HTTP listen address")
	tuningPath := fs.String("tuning", config.EnvOrDefault("SNEK_TUNING", "tuning.json"), "Tuning file (created with defaults if missing, reloaded on change)")
	dbPath := fs.String("db", config.EnvOrDefault("SNEK_DB", "data/games.db"), "SQLite game record (empty to disable)")
	decisionsDir := fs.String("decisions-dir", config.EnvOrDefault("SNEK_DECISIONS_DIR", ""), "Parquet decision log directory (empty to disable)")
	batchSize := fs.Int("batch-size", config.EnvIntOrDefault("SNEK_BATCH_SIZE", 500), "Decisions per parquet file")
	moveBudget := fs.Duration("move-timeout", config.EnvDurationOrDefault("SNEK_MOVE_TIMEOUT", defaults.MoveBudget), "Time allowed per move by the game server")
	reserve := fs.Duration("latency-reserve", config.EnvDurationOrDefault("SNEK_LATENCY_RESERVE", defaults.LatencyReserve), "Time kept back from each move for network overhead")
	color := fs.String("color", config.EnvOrDefault("SNEK_COLOR", defaults.Customization.Color), "Snake colour")
	name := fs.String("name", config.EnvOrDefault("SNEK_NAME", defaults.Customization.Name), "Snake name")
	headURL := fs.String("head-url", config.EnvOrDefault("SNEK_HEAD_URL", ""), "Snake head image URL")
	taunt := fs.String("taunt", config.EnvOrDefault("SNEK_TAUNT", defaults.Customization.Taunt), "Taunt sent with every move")
	logLevel := fs.String("log-level", config.EnvOrDefault("SNEK_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := fs.String("log-format", config.EnvOrDefault("SNEK_LOG_FORMAT", "pretty"), "pretty, json or text")
	debug := fs.Bool("gin-debug", config.EnvBoolOrDefault("SNEK_GIN_DEBUG", false), "Run gin in debug mode")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: *logLevel, Format: *logFormat})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(logger, runConfig{
		listen:       *listen,
		tuningPath:   *tuningPath,
		dbPath:       *dbPath,
		decisionsDir: *decisionsDir,
		batchSize:    *batchSize,
		ginDebug:     *debug,
		server: server.Config{
			Customization: api.StartResponse{
				Color:   *color,
				Name:    *name,
				HeadURL: *headURL,
				Taunt:   *taunt,
			},
			MoveBudget:     *moveBudget,
			LatencyReserve: *reserve,
			MinCompute:     defaults.MinCompute,
		},
	}); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	listen       string
	tuningPath   string
	dbPath       string
	decisionsDir string
	batchSize    int
	ginDebug     bool
	server       server.Config
}

func run(logger *slog.Logger, rc runConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tuning, err := config.LoadTuning(rc.tuningPath)
	if err != nil {
		// Defaults are still usable; a later edit to the file is picked up.
		logger.Warn("tuning file rejected, using defaults", "path", rc.tuningPath, "err", err)
	}
	tuningStore := config.NewTuningStore(tuning)
	if rc.tuningPath != "" {
		if err := config.WatchTuning(ctx, rc.tuningPath, tuningStore, logger); err != nil {
			logger.Warn("tuning hot reload disabled", "err", err)
		}
	}
	logger.Info("tuning loaded", "depth", tuning.Depth, "iterative", tuning.IterativeDeepening, "max_depth", tuning.MaxDepth, "parallel", tuning.Parallel)

	var opts []server.Option
	if rc.dbPath != "" {
		games, err := db.Open(rc.dbPath)
		if err != nil {
			return fmt.Errorf("open game db: %w", err)
		}
		defer games.Close()
		opts = append(opts, server.WithGameRecorder(games), server.WithGameReader(games))
		logger.Info("recording games", "db", rc.dbPath)
	}
	if rc.decisionsDir != "" {
		w, err := store.NewDecisionWriter(rc.decisionsDir, rc.batchSize)
		if err != nil {
			return fmt.Errorf("decision writer: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("flush decisions", "err", err)
			}
			_, written, files := w.Stats()
			logger.Info("decision log closed", "rows", written, "files", len(files))
		}()
		opts = append(opts, server.WithDecisionRecorder(w))
		logger.Info("recording decisions", "dir", rc.decisionsDir, "batch", rc.batchSize)
	}

	if rc.ginDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              rc.listen,
		Handler:           server.New(rc.server, tuningStore, logger, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", rc.listen, "compute_budget", rc.server.ComputeBudget())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
