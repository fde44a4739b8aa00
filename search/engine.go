// Package search picks a move by depth-limited lookahead over simulated boards.
//
// Opponents are not searched adversarially. At every ply each other live snake
// takes the move that is best for itself one ply ahead, and only the mover's
// own moves are optimised over the remaining depth.
package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/heuristic"
)

// Decision is the chosen move with the score that justified it.
type Decision struct {
	Move game.Move
	Eval heuristic.Evaluation
	// Depth is the lookahead depth the decision was computed at.
	Depth int
}

// ScoredMove is one root option considered by ScoreMoves.
type ScoredMove struct {
	Move      game.Move
	Eval      heuristic.Evaluation
	Candidate bool
}

// Engine runs searches with a fixed tuning. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	tuning config.Tuning
	logger *slog.Logger
}

func New(t config.Tuning, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tuning: t, logger: logger}
}

// Decide returns the best move for mover on b searching depth plies.
//
// When the candidate filter leaves nothing, all four moves are ranked with the
// same scoring so the least bad one is still returned. The only error is the
// context's, returned when ctx is done before the search finishes.
func (e *Engine) Decide(ctx context.Context, s *game.Session, b *game.Board, mover string, depth int) (Decision, error) {
	return e.decide(ctx, s, b, mover, depth, e.tuning.Parallel)
}

func (e *Engine) decide(ctx context.Context, s *game.Session, b *game.Board, mover string, depth int, parallel bool) (Decision, error) {
	if depth < 1 {
		depth = 1
	}
	moves := CandidateMoves(b, mover)
	if len(moves) == 0 {
		moves = game.Moves[:]
	}

	evals, err := e.scoreAll(ctx, s, b, mover, moves, depth, parallel)
	if err != nil {
		return Decision{}, err
	}

	best := 0
	for i := 1; i < len(evals); i++ {
		if evals[i].Compare(evals[best]) > 0 {
			best = i
		}
	}
	return Decision{Move: moves[best], Eval: evals[best], Depth: depth}, nil
}

// scoreAll scores moves in order. In parallel mode each move gets its own
// goroutine; results are stored by index so the pick stays deterministic.
func (e *Engine) scoreAll(ctx context.Context, s *game.Session, b *game.Board, mover string, moves []game.Move, depth int, parallel bool) ([]heuristic.Evaluation, error) {
	evals := make([]heuristic.Evaluation, len(moves))

	if !parallel || len(moves) == 1 {
		for i, m := range moves {
			ev, err := e.score(ctx, s, b, mover, m, depth)
			if err != nil {
				return nil, err
			}
			evals[i] = ev
		}
		return evals, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range moves {
		i, m := i, m
		g.Go(func() error {
			ev, err := e.score(gctx, s, b, mover, m, depth)
			if err != nil {
				return err
			}
			evals[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

// score is the discounted total for mover playing m on b.
func (e *Engine) score(ctx context.Context, s *game.Session, b *game.Board, mover string, m game.Move, depth int) (heuristic.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return heuristic.Evaluation{}, err
	}

	next := s.Simulate(b, map[string]game.Move{mover: m})
	ev := heuristic.Evaluate(next, mover, e.tuning)
	if heuristic.IsDead(ev, e.tuning) {
		return ev, nil
	}
	if depth <= 1 {
		return ev, nil
	}

	after := next
	if others := liveOthers(s, next, mover); len(others) > 0 {
		replies := make(map[string]game.Move, len(others))
		for _, id := range others {
			d, err := e.decide(ctx, s, next, id, 1, false)
			if err != nil {
				return heuristic.Evaluation{}, err
			}
			replies[id] = d.Move
		}
		after = s.Simulate(next, replies)
	}

	cont, err := e.decide(ctx, s, after, mover, depth-1, false)
	if err != nil {
		return heuristic.Evaluation{}, err
	}
	return ev.Add(cont.Eval.Scale(e.tuning.DiscountFactor)), nil
}

// liveOthers lists the roster members other than mover still alive on b.
func liveOthers(s *game.Session, b *game.Board, mover string) []string {
	var out []string
	for _, id := range s.OtherSnakeIDs(mover) {
		if _, ok := b.Snake(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// ScoreMoves scores every one of the four moves for mover at depth, marking
// which of them pass the candidate filter. It is the root of Decide laid out
// for inspection by tools.
func (e *Engine) ScoreMoves(ctx context.Context, s *game.Session, b *game.Board, mover string, depth int) ([]ScoredMove, error) {
	candidate := make(map[game.Move]bool, len(game.Moves))
	for _, m := range CandidateMoves(b, mover) {
		candidate[m] = true
	}

	evals, err := e.scoreAll(ctx, s, b, mover, game.Moves[:], depth, e.tuning.Parallel)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredMove, len(game.Moves))
	for i, m := range game.Moves {
		out[i] = ScoredMove{Move: m, Eval: evals[i], Candidate: candidate[m]}
	}
	return out, nil
}

// BestMove decides for the session's controlled snake.
//
// With iterative deepening it searches depth 1, 2, ... up to MaxDepth until ctx
// is done and returns the deepest search that completed. Otherwise it searches
// at the tuned Depth, dropping back to depth 1 if ctx ends first. Depth 1
// always completes, so BestMove only errors if the session is unusable.
func (e *Engine) BestMove(ctx context.Context, s *game.Session) (Decision, error) {
	start := time.Now()
	t := e.tuning

	if !t.IterativeDeepening {
		d, err := e.Decide(ctx, s, s.Board, s.You, t.Depth)
		if err == nil {
			e.logger.Debug("search complete", "game", s.GameID, "turn", s.Turn, "depth", d.Depth, "move", d.Move, "elapsed", time.Since(start))
			return d, nil
		}
		e.logger.Warn("search cut short, using depth 1", "game", s.GameID, "turn", s.Turn, "depth", t.Depth, "err", err)
		return e.Decide(context.WithoutCancel(ctx), s, s.Board, s.You, 1)
	}

	best, err := e.Decide(context.WithoutCancel(ctx), s, s.Board, s.You, 1)
	if err != nil {
		return Decision{}, err
	}
	for depth := 2; depth <= t.MaxDepth; depth++ {
		if ctx.Err() != nil {
			break
		}
		d, err := e.Decide(ctx, s, s.Board, s.You, depth)
		if err != nil {
			break
		}
		best = d
		e.logger.Debug("depth complete", "game", s.GameID, "turn", s.Turn, "depth", depth, "move", d.Move, "elapsed", time.Since(start))
		// Nothing deeper can rescue a position where every line dies.
		if heuristic.IsDead(d.Eval, t) {
			break
		}
	}
	return best, nil
}
