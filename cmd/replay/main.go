package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/logging"
	"github.com/brensch/snekahead/replay"
	"github.com/brensch/snekahead/store"
)

func main() {
	_ = godotenv.Load()

	outDir := flag.String("out-dir", config.EnvOrDefault("OUT_DIR", "data/replay"), "Directory for parquet decision batches")
	seenPath := flag.String("seen-log", config.EnvOrDefault("SEEN_LOG", "data/replay/seen_games.log"), "Append-only log of game ids already analysed")
	dbPath := flag.String("db", config.EnvOrDefault("SNEK_DB", "data/games.db"), "SQLite game record (empty to disable)")
	tuningPath := flag.String("tuning", config.EnvOrDefault("SNEK_TUNING", "tuning.json"), "Tuning file")
	batchSize := flag.Int("batch-size", config.EnvIntOrDefault("BATCH_SIZE", 5000), "Decisions per parquet file")
	maxPlayers := flag.Int("max-players", config.EnvIntOrDefault("MAX_PLAYERS", 50), "Players checked per leaderboard")
	maxGames := flag.Int("max-games", config.EnvIntOrDefault("MAX_GAMES", 0), "Stop after analysing this many games (0 = all discovered)")
	requestDelay := flag.Duration("delay", config.EnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	moveBudget := flag.Duration("move-timeout", config.EnvDurationOrDefault("REPLAY_MOVE_TIMEOUT", 100*time.Millisecond), "Search time per analysed turn")
	leaderboards := flag.String("leaderboards", config.EnvOrDefault("LEADERBOARDS", strings.Join(replay.DefaultDiscoveryConfig().LeaderboardURLs, ",")), "Comma separated leaderboard URLs")
	engineURL := flag.String("engine-url", config.EnvOrDefault("ENGINE_URL", replay.DefaultDownloadConfig().EngineURL), "Websocket URL template for game events")
	gameID := flag.String("game", "", "Analyse only this game id")
	targets := flag.String("snakes", "", "Comma separated snake names or ids to analyse (default all)")
	snapshots := flag.Bool("snapshots", config.EnvBoolOrDefault("SNAPSHOTS", false), "Store the board with every decision row")
	logLevel := flag.String("log-level", config.EnvOrDefault("SNEK_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := flag.String("log-format", config.EnvOrDefault("SNEK_LOG_FORMAT", "pretty"), "pretty, json or text")
	flag.Parse()

	logger, err := logging.New(os.Stderr, logging.Options{Level: *logLevel, Format: *logFormat})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tuning, err := config.LoadTuning(*tuningPath)
	if err != nil {
		logger.Warn("tuning file rejected, using defaults", "path", *tuningPath, "err", err)
	}

	seen, err := store.OpenSeenLog(*seenPath)
	if err != nil {
		log.Fatalf("open seen log: %v", err)
	}
	defer seen.Close()

	writer, err := store.NewDecisionWriter(*outDir, *batchSize)
	if err != nil {
		log.Fatalf("decision writer: %v", err)
	}

	analyzer := &replay.Analyzer{
		Tuning:     config.NewTuningStore(tuning),
		Decisions:  writer,
		Logger:     logger,
		MoveBudget: *moveBudget,
		Snapshots:  *snapshots,
	}
	if *dbPath != "" {
		d, err := db.Open(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer d.Close()
		analyzer.Games = d
	}

	dlCfg := replay.DefaultDownloadConfig()
	dlCfg.EngineURL = *engineURL
	downloader := replay.NewDownloader(dlCfg, logger)

	logger.Info("starting replay analysis",
		"out_dir", *outDir,
		"seen", seen.Count(),
		"max_players", *maxPlayers,
		"move_timeout", *moveBudget,
	)

	ids := make(chan string, 1000)
	if *gameID != "" {
		ids <- *gameID
		close(ids)
	} else {
		discCfg := replay.DefaultDiscoveryConfig()
		discCfg.LeaderboardURLs = splitList(*leaderboards)
		discCfg.RequestDelay = *requestDelay
		discCfg.MaxPlayers = *maxPlayers
		disc := replay.NewDiscoverer(discCfg, seen, logger)
		go func() {
			defer close(ids)
			if _, err := disc.Discover(ctx, ids); err != nil && ctx.Err() == nil {
				logger.Error("discovery failed", "err", err)
			}
		}()
	}

	var analysed, failed, turns, agreed int
	for id := range ids {
		if ctx.Err() != nil {
			break
		}
		if *gameID == "" && seen.Has(id) {
			continue
		}

		g, err := downloader.Download(ctx, id)
		if err != nil {
			failed++
			logger.Warn("download failed", "game", id, "err", err)
			continue
		}
		reports, err := analyzer.Analyze(ctx, g, splitList(*targets)...)
		if err != nil {
			failed++
			logger.Warn("analysis failed", "game", id, "err", err)
			continue
		}
		for _, r := range reports {
			turns += r.Turns
			agreed += r.Agreed
			if *gameID != "" {
				printReport(r)
			}
		}
		if err := seen.Add(id); err != nil {
			logger.Warn("seen log append failed", "game", id, "err", err)
		}

		analysed++
		if analysed%25 == 0 {
			buffered, written, _ := writer.Stats()
			logger.Info("progress", "analysed", analysed, "failed", failed, "buffered_rows", buffered, "written_rows", written)
		}
		if *maxGames > 0 && analysed >= *maxGames {
			break
		}
	}
	stop()

	if err := writer.Close(); err != nil {
		logger.Error("final flush failed", "err", err)
	}
	_, written, files := writer.Stats()
	agreement := 0.0
	if turns > 0 {
		agreement = float64(agreed) / float64(turns)
	}
	logger.Info("replay analysis complete",
		"analysed", analysed,
		"failed", failed,
		"turns", turns,
		"agreement", fmt.Sprintf("%.3f", agreement),
		"rows", written,
		"files", len(files),
	)
}

func printReport(r replay.Report) {
	fmt.Printf("%s %s (%s): %d/%d turns agreed (%.1f%%), %s\n",
		r.GameID, r.Name, r.SnakeID, r.Agreed, r.Turns, 100*r.Agreement(), r.Result)
	for _, d := range r.Disagreements {
		fmt.Printf("  turn %4d: engine %-5s actual %s\n", d.Turn, d.Chosen, d.Actual)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
