package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/logging"
	"github.com/brensch/snekahead/render"
	"github.com/brensch/snekahead/selfplay"
	"github.com/brensch/snekahead/store"
)

var totalTurns atomic.Int64

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2ecc71"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	boardStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	wonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
	lostStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
)

type gameDoneMsg selfplay.Result

type boardMsg selfplay.TurnInfo

type runDoneMsg struct{}

type tickMsg time.Time

type model struct {
	start   time.Time
	games   int
	turns   int64
	results map[string]int
	recent  []string
	board   string
	boardID string

	done     chan selfplay.Result
	boards   chan selfplay.TurnInfo
	finished chan struct{}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForGame(c chan selfplay.Result) tea.Cmd {
	return func() tea.Msg { return gameDoneMsg(<-c) }
}

func waitForBoard(c chan selfplay.TurnInfo) tea.Cmd {
	return func() tea.Msg { return boardMsg(<-c) }
}

func waitForRun(c chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-c
		return runDoneMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForGame(m.done), waitForBoard(m.boards), waitForRun(m.finished), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.turns = totalTurns.Load()
		return m, tickCmd()
	case gameDoneMsg:
		m.games++
		m.results[msg.Outcome]++
		line := fmt.Sprintf("%s  turns=%-4d winner=%-7s %s", msg.GameID[:8], msg.Turns, orDash(msg.Winner), msg.Outcome)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, waitForGame(m.done)
	case boardMsg:
		m.board = render.ASCII(msg.Board, selfplay.SnakeID(0))
		m.boardID = fmt.Sprintf("%s turn %d", msg.GameID[:8], msg.Turn)
		return m, waitForBoard(m.boards)
	case runDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	elapsed := time.Since(m.start)
	rate := func(n float64) float64 {
		if elapsed < time.Second {
			return 0
		}
		return n / elapsed.Seconds()
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("snekahead self-play") + "\n\n")
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("games", fmt.Sprintf("%d (%.2f/s)", m.games, rate(float64(m.games))))
	row("turns", fmt.Sprintf("%d (%.1f/s)", m.turns, rate(float64(m.turns))))
	row("snake1", wonStyle.Render(fmt.Sprintf("won %d", m.results[db.ResultWon]))+"  "+
		lostStyle.Render(fmt.Sprintf("lost %d", m.results[db.ResultLost]))+
		fmt.Sprintf("  draw %d", m.results[db.ResultDraw]))
	row("elapsed", elapsed.Round(time.Second).String())

	if m.board != "" {
		sb.WriteString("\n" + m.boardID + "\n")
		sb.WriteString(boardStyle.Render(strings.TrimRight(m.board, "\n")) + "\n")
	}

	sb.WriteString("\nrecent games:\n")
	for _, g := range m.recent {
		sb.WriteString("  " + g + "\n")
	}
	sb.WriteString("\npress q to quit\n")
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func main() {
	_ = godotenv.Load()

	defaults := selfplay.DefaultOptions()
	games := flag.Int("games", config.EnvIntOrDefault("SNEK_SELFPLAY_GAMES", 100), "Number of games to play")
	workers := flag.Int("workers", config.EnvIntOrDefault("SNEK_SELFPLAY_WORKERS", 4), "Games played concurrently")
	width := flag.Int("width", defaults.Width, "Board width")
	height := flag.Int("height", defaults.Height, "Board height")
	snakes := flag.Int("snakes", defaults.Snakes, "Snakes per game")
	maxTurns := flag.Int("max-turns", defaults.MaxTurns, "Turn limit per game")
	moveBudget := flag.Duration("move-timeout", config.EnvDurationOrDefault("SNEK_SELFPLAY_MOVE_TIMEOUT", defaults.MoveBudget), "Search time per snake per turn")
	minFood := flag.Int("min-food", defaults.Food.MinimumFood, "Minimum food on the board")
	foodChance := flag.Int("food-chance", defaults.Food.FoodSpawnChance, "Percent chance of extra food each turn")
	seed := flag.Int64("seed", 0, "Base seed (0 for random)")
	tuningPath := flag.String("tuning", config.EnvOrDefault("SNEK_TUNING", "tuning.json"), "Tuning file")
	dbPath := flag.String("db", config.EnvOrDefault("SNEK_DB", "data/games.db"), "SQLite game record (empty to disable)")
	outDir := flag.String("out-dir", config.EnvOrDefault("SNEK_SELFPLAY_OUT", "data/selfplay"), "Parquet decision output (empty to disable)")
	batchSize := flag.Int("batch-size", 5000, "Decisions per parquet file")
	snapshots := flag.Bool("snapshots", false, "Store the board with every decision row")
	tui := flag.Bool("tui", config.EnvBoolOrDefault("SNEK_TUI", true), "Show the dashboard instead of logging")
	logFile := flag.String("log-file", "", "Write logs here while the dashboard is shown")
	logLevel := flag.String("log-level", config.EnvOrDefault("SNEK_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	var logOut io.Writer = os.Stderr
	if *tui {
		logOut = io.Discard
		if *logFile != "" {
			f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				log.Fatalf("open log file: %v", err)
			}
			defer f.Close()
			logOut = f
		}
	}
	logger, err := logging.New(logOut, logging.Options{Level: *logLevel})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tuning, err := config.LoadTuning(*tuningPath)
	if err != nil {
		logger.Warn("tuning file rejected, using defaults", "path", *tuningPath, "err", err)
	}
	tuningStore := config.NewTuningStore(tuning)
	if *tuningPath != "" {
		if err := config.WatchTuning(ctx, *tuningPath, tuningStore, logger); err != nil {
			logger.Warn("tuning hot reload disabled", "err", err)
		}
	}

	runner := &selfplay.Runner{Tuning: tuningStore, Logger: logger}
	if *dbPath != "" {
		d, err := db.Open(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer d.Close()
		runner.Games = d
	}
	var writer *store.DecisionWriter
	if *outDir != "" {
		writer, err = store.NewDecisionWriter(*outDir, *batchSize)
		if err != nil {
			log.Fatalf("decision writer: %v", err)
		}
		runner.Decisions = writer
	}

	opts := selfplay.Options{
		Width:       *width,
		Height:      *height,
		Snakes:      *snakes,
		StartLength: defaults.StartLength,
		MaxTurns:    *maxTurns,
		Food:        game.FoodSettings{MinimumFood: *minFood, FoodSpawnChance: *foodChance},
		MoveBudget:  *moveBudget,
		Seed:        *seed,
		Snapshots:   *snapshots,
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("options: %v", err)
	}

	done := make(chan selfplay.Result, *workers)
	boards := make(chan selfplay.TurnInfo, 1)
	finished := make(chan struct{})
	var runErr error

	runner.OnTurn = func(ti selfplay.TurnInfo) {
		totalTurns.Add(1)
		if !*tui {
			return
		}
		// Drop frames the dashboard has not caught up with.
		select {
		case boards <- ti:
		default:
		}
	}

	go func() {
		defer close(finished)
		runErr = runner.PlayMany(ctx, *games, *workers, opts, func(res selfplay.Result) {
			if *tui {
				select {
				case done <- res:
				case <-ctx.Done():
				}
			}
		})
	}()

	if *tui {
		m := model{start: time.Now(), results: make(map[string]int), done: done, boards: boards, finished: finished}
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			log.Printf("dashboard: %v", err)
		}
		// Quitting the dashboard stops the remaining games.
		cancel()
	}
	<-finished

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("final flush failed", "err", err)
		}
		_, written, files := writer.Stats()
		logger.Info("decisions written", "rows", written, "files", len(files))
	}
	if runErr != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "self-play: %v\n", runErr)
		os.Exit(1)
	}
	fmt.Printf("played %d turns\n", totalTurns.Load())
}
