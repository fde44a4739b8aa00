package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/search"
	"github.com/brensch/snekahead/store"
)

type GameRecorder interface {
	StartGame(g db.Game) error
	EndGame(id string, turns int, result string) error
}

type DecisionRecorder interface {
	Record(row store.DecisionRow) error
}

// Disagreement is a turn where the engine would have moved differently.
type Disagreement struct {
	Turn   int
	Chosen game.Move
	Actual game.Move
}

// Report compares the engine with one snake over a game.
type Report struct {
	GameID  string
	SnakeID string
	Name    string
	// Turns counts frames where both the engine's choice and the actual move
	// are known.
	Turns         int
	Agreed        int
	Disagreements []Disagreement
	Result        string
}

func (r Report) Agreement() float64 {
	if r.Turns == 0 {
		return 0
	}
	return float64(r.Agreed) / float64(r.Turns)
}

type Analyzer struct {
	Tuning    *config.TuningStore
	Games     GameRecorder
	Decisions DecisionRecorder
	Logger    *slog.Logger
	// MoveBudget bounds the search per analysed turn.
	MoveBudget time.Duration
	// Snapshots stores the board with every decision row.
	Snapshots bool
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Analyze replays g for each snake named in targets (by id or name), or for
// every snake in the first frame when targets is empty.
func (a *Analyzer) Analyze(ctx context.Context, g *Game, targets ...string) ([]Report, error) {
	if len(g.Frames) < 2 {
		return nil, fmt.Errorf("%s: %d frames: %w", g.ID, len(g.Frames), ErrNoFrames)
	}
	ids := a.selectSnakes(g, targets)
	if len(ids) == 0 {
		return nil, nil
	}

	last := g.Frames[len(g.Frames)-1].Turn
	if a.Games != nil {
		if err := a.Games.StartGame(db.Game{ID: g.ID, You: ids[0], Source: "replay", Width: g.Width, Height: g.Height}); err != nil {
			a.logger().Warn("record replay start failed", "game", g.ID, "err", err)
		}
	}

	reports := make([]Report, 0, len(ids))
	for _, id := range ids {
		rep, err := a.analyzeSnake(ctx, g, id)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}

	if a.Games != nil {
		if err := a.Games.EndGame(g.ID, last, g.Result(ids[0])); err != nil {
			a.logger().Warn("record replay end failed", "game", g.ID, "err", err)
		}
	}
	return reports, nil
}

func (a *Analyzer) selectSnakes(g *Game, targets []string) []string {
	var ids []string
	for _, s := range g.Frames[0].Snakes {
		if len(targets) == 0 {
			ids = append(ids, s.ID)
			continue
		}
		for _, t := range targets {
			if t == s.ID || t == s.Name {
				ids = append(ids, s.ID)
				break
			}
		}
	}
	return ids
}

func (a *Analyzer) analyzeSnake(ctx context.Context, g *Game, id string) (Report, error) {
	rep := Report{GameID: g.ID, SnakeID: id, Result: g.Result(id)}
	if s, ok := g.frameSnake(0, id); ok {
		rep.Name = s.Name
	}

	budget := a.MoveBudget
	if budget <= 0 {
		budget = 100 * time.Millisecond
	}
	engine := search.New(a.Tuning.Load(), a.logger())

	for i := 0; i+1 < len(g.Frames); i++ {
		actual, ok := g.ActualMove(i, id)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		board := g.Board(i)
		turn := g.Frames[i].Turn
		session := game.NewSession(g.ID, turn, id, board)

		start := time.Now()
		mctx, cancel := context.WithTimeout(ctx, budget)
		d, err := engine.BestMove(mctx, session)
		cancel()
		if err != nil {
			return rep, fmt.Errorf("%s turn %d: %w", g.ID, turn, err)
		}
		elapsed := time.Since(start)

		rep.Turns++
		if d.Move == actual {
			rep.Agreed++
		} else {
			rep.Disagreements = append(rep.Disagreements, Disagreement{Turn: turn, Chosen: d.Move, Actual: actual})
		}
		a.record(g, turn, id, board, d, actual, elapsed)
	}

	a.logger().Info("replay analysed", "game", g.ID, "snake", rep.Name, "turns", rep.Turns, "agreement", fmt.Sprintf("%.2f", rep.Agreement()), "result", rep.Result)
	return rep, nil
}

func (a *Analyzer) record(g *Game, turn int, id string, board *game.Board, d search.Decision, actual game.Move, elapsed time.Duration) {
	if a.Decisions == nil {
		return
	}
	row := store.DecisionRow{
		GameID:        g.ID,
		Turn:          int32(turn),
		SnakeID:       id,
		Width:         int32(g.Width),
		Height:        int32(g.Height),
		Move:          d.Move.String(),
		Actual:        actual.String(),
		Depth:         int32(d.Depth),
		TailSafety:    d.Eval[0],
		Space:         d.Eval[1],
		Food:          d.Eval[2],
		Candidates:    int32(len(search.CandidateMoves(board, id))),
		ElapsedMicros: elapsed.Microseconds(),
		Source:        "replay",
	}
	if a.Snapshots {
		if body, err := json.Marshal(api.FromBoard(g.ID, turn, id, board)); err == nil {
			row.Snapshot = body
		}
	}
	if err := a.Decisions.Record(row); err != nil {
		a.logger().Warn("record decision failed", "game", g.ID, "turn", turn, "err", err)
	}
}
