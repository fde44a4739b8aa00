// Package selfplay runs complete games where every snake is driven by the
// engine, recording results and per-turn decisions.
package selfplay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/render"
	"github.com/brensch/snekahead/search"
	"github.com/brensch/snekahead/store"
)

const maxSnakes = 8

var ErrInvalidOptions = errors.New("invalid self-play options")

type GameRecorder interface {
	StartGame(g db.Game) error
	RecordMove(m db.Move) error
	EndGame(id string, turns int, result string) error
}

type DecisionRecorder interface {
	Record(row store.DecisionRow) error
}

type Options struct {
	Width  int
	Height int
	Snakes int
	// StartLength segments are stacked on the spawn cell.
	StartLength int
	MaxTurns    int
	Food        game.FoodSettings
	// MoveBudget bounds each snake's search per turn.
	MoveBudget time.Duration
	// Seed drives spawn assignment and food. Zero picks a time based seed.
	Seed int64
	// Snapshots stores the full board with every decision row.
	Snapshots bool
}

func DefaultOptions() Options {
	return Options{
		Width:       11,
		Height:      11,
		Snakes:      2,
		StartLength: 3,
		MaxTurns:    500,
		Food:        game.DefaultFoodSettings,
		MoveBudget:  100 * time.Millisecond,
	}
}

func (o Options) Validate() error {
	switch {
	case o.Width < 3 || o.Height < 3:
		return fmt.Errorf("%w: board %dx%d", ErrInvalidOptions, o.Width, o.Height)
	case o.Snakes < 1 || o.Snakes > maxSnakes:
		return fmt.Errorf("%w: %d snakes", ErrInvalidOptions, o.Snakes)
	case o.StartLength < 1:
		return fmt.Errorf("%w: start length %d", ErrInvalidOptions, o.StartLength)
	case o.MaxTurns < 1:
		return fmt.Errorf("%w: max turns %d", ErrInvalidOptions, o.MaxTurns)
	case o.MoveBudget <= 0:
		return fmt.Errorf("%w: move budget %v", ErrInvalidOptions, o.MoveBudget)
	}
	if len(spawnPoints(o.Width, o.Height)) < o.Snakes {
		return fmt.Errorf("%w: %dx%d board has no room for %d snakes", ErrInvalidOptions, o.Width, o.Height, o.Snakes)
	}
	return nil
}

// Result summarises a finished game. Winner is empty unless exactly one snake
// outlived the rest.
type Result struct {
	GameID    string
	Winner    string
	Turns     int
	Survivors []string
	// Outcome is db.ResultWon, ResultLost or ResultDraw from the first snake's view.
	Outcome string
	Final   *game.Board
	Rows    int
}

// TurnInfo is passed to progress callbacks after every turn.
type TurnInfo struct {
	GameID string
	Turn   int
	Board  *game.Board
	Moves  map[string]game.Move
}

type Runner struct {
	Tuning    *config.TuningStore
	Games     GameRecorder
	Decisions DecisionRecorder
	Logger    *slog.Logger
	// OnTurn, if set, is called after each turn is applied.
	OnTurn func(TurnInfo)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// SnakeID names the i'th self-play participant.
func SnakeID(i int) string { return fmt.Sprintf("snake%d", i+1) }

// NewBoard places opts.Snakes snakes at full health on distinct spawn cells
// and spawns the minimum food.
func NewBoard(opts Options, rng *rand.Rand) *game.Board {
	spawns := spawnPoints(opts.Width, opts.Height)
	rng.Shuffle(len(spawns), func(i, j int) { spawns[i], spawns[j] = spawns[j], spawns[i] })

	snakes := make([]game.Snake, opts.Snakes)
	for i := range snakes {
		body := make([]game.Point, opts.StartLength)
		for j := range body {
			body[j] = spawns[i]
		}
		snakes[i] = game.Snake{ID: SnakeID(i), Name: SnakeID(i), Health: game.MaxHealth, Body: body}
	}
	b := game.NewBoard(opts.Width, opts.Height, snakes, nil, nil)
	game.ApplyFoodSettings(b, rng, game.FoodSettings{MinimumFood: opts.Food.MinimumFood})
	return b
}

// spawnPoints lists distinct cells one step in from the walls: corners first,
// then edge midpoints.
func spawnPoints(w, h int) []game.Point {
	cands := []game.Point{
		{X: 1, Y: 1}, {X: w - 2, Y: h - 2}, {X: w - 2, Y: 1}, {X: 1, Y: h - 2},
		{X: w / 2, Y: 1}, {X: w / 2, Y: h - 2}, {X: 1, Y: h / 2}, {X: w - 2, Y: h / 2},
	}
	seen := make(map[game.Point]bool, len(cands))
	out := make([]game.Point, 0, len(cands))
	for _, p := range cands {
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= h || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// PlayGame runs one game to completion: every live snake searches in parallel,
// the moves are applied together, then food spawns. The game ends when at most
// one snake remains (none for single snake games) or after MaxTurns.
//
// A cancelled ctx stops the game early; the partial result is returned with
// ctx's error.
func (r *Runner) PlayGame(ctx context.Context, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log := r.logger()

	gameID := uuid.NewString()
	you := SnakeID(0)
	board := NewBoard(opts, rng)

	if r.Games != nil {
		if err := r.Games.StartGame(db.Game{ID: gameID, You: you, Source: "selfplay", Width: opts.Width, Height: opts.Height}); err != nil {
			log.Warn("record game start failed", "game", gameID, "err", err)
		}
	}
	log.Debug("self-play game started", "game", gameID, "seed", seed, "snakes", opts.Snakes)

	res := Result{GameID: gameID}
	turn := 0
	for ; turn < opts.MaxTurns && !over(board, opts.Snakes); turn++ {
		if err := ctx.Err(); err != nil {
			res.Turns = turn
			res.Final = board
			return res, err
		}

		decisions, err := r.decideAll(ctx, gameID, turn, board, opts.MoveBudget)
		if err != nil {
			res.Turns = turn
			res.Final = board
			return res, err
		}

		moves := make(map[string]game.Move, len(decisions))
		for id, d := range decisions {
			moves[id] = d.Move
		}
		res.Rows += r.record(gameID, turn, board, decisions, opts.Snapshots)

		board = board.Update(moves)
		game.ApplyFoodSettings(board, rng, opts.Food)

		if r.OnTurn != nil {
			r.OnTurn(TurnInfo{GameID: gameID, Turn: turn + 1, Board: board, Moves: moves})
		}
		log.Debug("turn", "game", gameID, "turn", turn+1, "alive", len(board.Snakes), "board", "\n"+render.ASCII(board, you))
	}

	res.Turns = turn
	res.Final = board
	res.Survivors = board.LiveIDs()
	if len(res.Survivors) == 1 && opts.Snakes > 1 {
		res.Winner = res.Survivors[0]
	}
	res.Outcome = outcome(board, you, opts.Snakes)

	if r.Games != nil {
		if err := r.Games.EndGame(gameID, turn, res.Outcome); err != nil {
			log.Warn("record game end failed", "game", gameID, "err", err)
		}
	}
	log.Info("self-play game finished", "game", gameID, "turns", turn, "winner", res.Winner, "outcome", res.Outcome)
	return res, nil
}

func over(b *game.Board, snakes int) bool {
	if snakes > 1 {
		return len(b.Snakes) <= 1
	}
	return len(b.Snakes) == 0
}

// outcome is decided for you: the sole survivor wins, nobody surviving or a
// shared survival is a draw.
func outcome(b *game.Board, you string, snakes int) string {
	_, alive := b.Snakes[you]
	switch {
	case alive && (len(b.Snakes) == 1 || snakes == 1):
		return db.ResultWon
	case alive:
		return db.ResultDraw
	case len(b.Snakes) == 0:
		return db.ResultDraw
	default:
		return db.ResultLost
	}
}

type timedDecision struct {
	search.Decision
	elapsed    time.Duration
	candidates int
}

func (r *Runner) decideAll(ctx context.Context, gameID string, turn int, board *game.Board, budget time.Duration) (map[string]timedDecision, error) {
	engine := search.New(r.Tuning.Load(), r.logger())
	ids := board.LiveIDs()

	var mu sync.Mutex
	out := make(map[string]timedDecision, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			start := time.Now()
			mctx, cancel := context.WithTimeout(gctx, budget)
			defer cancel()

			session := game.NewSession(gameID, turn, id, board)
			d, err := engine.BestMove(mctx, session)
			if err != nil {
				return fmt.Errorf("decide %s: %w", id, err)
			}
			td := timedDecision{
				Decision:   d,
				elapsed:    time.Since(start),
				candidates: len(search.CandidateMoves(board, id)),
			}
			mu.Lock()
			out[id] = td
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) record(gameID string, turn int, board *game.Board, decisions map[string]timedDecision, snapshots bool) int {
	log := r.logger()
	you := SnakeID(0)

	if d, ok := decisions[you]; ok && r.Games != nil {
		err := r.Games.RecordMove(db.Move{GameID: gameID, Turn: turn, Move: d.Move.String(), Depth: d.Depth, Elapsed: d.elapsed})
		if err != nil {
			log.Warn("record move failed", "game", gameID, "turn", turn, "err", err)
		}
	}
	if r.Decisions == nil {
		return 0
	}

	rows := 0
	for _, id := range board.LiveIDs() {
		d := decisions[id]
		row := store.DecisionRow{
			GameID:        gameID,
			Turn:          int32(turn),
			SnakeID:       id,
			Width:         int32(board.Width),
			Height:        int32(board.Height),
			Move:          d.Move.String(),
			Actual:        d.Move.String(),
			Depth:         int32(d.Depth),
			TailSafety:    d.Eval[0],
			Space:         d.Eval[1],
			Food:          d.Eval[2],
			Candidates:    int32(d.candidates),
			ElapsedMicros: d.elapsed.Microseconds(),
			Source:        "selfplay",
		}
		if snapshots {
			body, err := json.Marshal(api.FromBoard(gameID, turn, id, board))
			if err == nil {
				row.Snapshot = body
			}
		}
		if err := r.Decisions.Record(row); err != nil {
			log.Warn("record decision failed", "game", gameID, "turn", turn, "snake", id, "err", err)
			continue
		}
		rows++
	}
	return rows
}

// PlayMany plays games games with at most workers running at once. onResult
// is called from worker goroutines as each game finishes.
func (r *Runner) PlayMany(ctx context.Context, games, workers int, opts Options, onResult func(Result)) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < games; i++ {
		if gctx.Err() != nil {
			break
		}
		gameOpts := opts
		if opts.Seed != 0 {
			gameOpts.Seed = opts.Seed + int64(i)
		}
		g.Go(func() error {
			res, err := r.PlayGame(gctx, gameOpts)
			if err != nil {
				return err
			}
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	return g.Wait()
}
