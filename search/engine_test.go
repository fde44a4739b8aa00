package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/heuristic"
)

func pts(xy ...int) []game.Point {
	out := make([]game.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, game.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dumpBoard(b *game.Board) string {
	var sb strings.Builder
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			switch b.Entity(game.Point{X: x, Y: y}) {
			case game.Head:
				sb.WriteByte('H')
			case game.Body:
				sb.WriteByte('s')
			case game.Food:
				sb.WriteByte('F')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func sessionFor(b *game.Board, you string) *game.Session {
	return game.NewSession("test", 0, you, b)
}

func TestCandidateMoves_SingleEscapeRoute(t *testing.T) {
	// Wall on the left, own neck above, the other snake's body to the right.
	b := game.NewBoard(5, 5, []game.Snake{
		{ID: "me", Health: 90, Body: pts(0, 2, 0, 1, 0, 0)},
		{ID: "other", Health: 90, Body: pts(1, 1, 1, 2, 1, 3, 1, 4)},
	}, nil, nil)

	got := CandidateMoves(b, "me")
	if len(got) != 1 || got[0] != game.Down {
		t.Fatalf("candidates=%v want=[down]\n%s", got, dumpBoard(b))
	}

	e := New(config.DefaultTuning(), quietLogger())
	d, err := e.BestMove(context.Background(), sessionFor(b, "me"))
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if d.Move != game.Down {
		t.Fatalf("move=%s want=down", d.Move)
	}
}

func TestCandidateMoves_TailIsPassable(t *testing.T) {
	b := game.NewBoard(5, 5, []game.Snake{
		{ID: "me", Health: 90, Body: pts(2, 2, 2, 3, 2, 4)},
		{ID: "other", Health: 90, Body: pts(3, 0, 3, 1, 2, 1)},
	}, nil, nil)

	got := CandidateMoves(b, "me")
	want := []game.Move{game.Up, game.Left, game.Right}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("candidates=%v want=%v", got, want)
	}
}

func TestCandidateMoves_StackedTailBlocks(t *testing.T) {
	b := game.NewBoard(5, 5, []game.Snake{
		{ID: "me", Health: 90, Body: pts(2, 2, 2, 3, 2, 4)},
		{ID: "other", Health: 100, Body: pts(3, 0, 3, 1, 2, 1, 2, 1)},
	}, nil, nil)

	for _, m := range CandidateMoves(b, "me") {
		if m == game.Up {
			t.Fatalf("stacked tail cell should not be a candidate")
		}
	}
}

func TestCandidateMoves_UnknownSnake(t *testing.T) {
	b := game.NewBoard(5, 5, nil, nil, nil)
	if got := CandidateMoves(b, "ghost"); len(got) != 0 {
		t.Fatalf("candidates=%v want none", got)
	}
}

func TestBestMove_AvoidsAdjacentFoodTrap(t *testing.T) {
	// Food in the top-left corner. Eating it leaves the head boxed in by its
	// own body with no way back to the tail.
	b := game.NewBoard(7, 7, []game.Snake{{
		ID:     "me",
		Health: 50,
		Body:   pts(1, 0, 1, 1, 0, 1, 0, 2, 0, 3, 1, 3, 2, 3),
	}}, nil, pts(0, 0))

	for _, depth := range []int{1, 2, 3} {
		tuning := config.DefaultTuning()
		tuning.Depth = depth
		e := New(tuning, quietLogger())

		d, err := e.BestMove(context.Background(), sessionFor(b, "me"))
		if err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		if d.Move != game.Right {
			scores, _ := e.ScoreMoves(context.Background(), sessionFor(b, "me"), b, "me", depth)
			t.Fatalf("depth %d move=%s want=right\n%s%v", depth, d.Move, dumpBoard(b), scores)
		}
	}
}

func TestBestMove_NoSafeMoveStillAnswers(t *testing.T) {
	// Every neighbour of the head is a body segment that will not vacate.
	b := game.NewBoard(6, 6, []game.Snake{
		{ID: "me", Health: 90, Body: pts(2, 2, 2, 3, 2, 4)},
		{ID: "other", Health: 90, Body: pts(1, 3, 1, 2, 1, 1, 2, 1, 3, 1, 3, 2, 3, 3, 4, 3)},
	}, nil, nil)

	if got := CandidateMoves(b, "me"); len(got) != 0 {
		t.Fatalf("candidates=%v want none\n%s", got, dumpBoard(b))
	}

	tuning := config.DefaultTuning()
	e := New(tuning, quietLogger())
	d, err := e.BestMove(context.Background(), sessionFor(b, "me"))
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if d.Move < game.Up || d.Move > game.Right {
		t.Fatalf("move=%d out of range", d.Move)
	}
	if !heuristic.IsDead(d.Eval, tuning) {
		t.Fatalf("eval=%s want dead sentinel", d.Eval)
	}
}

func TestBestMove_FallbackPrefersLongerSurvival(t *testing.T) {
	// All candidates are filtered because the other head blocks the only exit,
	// but moving into the shorter snake's head wins the collision.
	b := game.NewBoard(5, 5, []game.Snake{
		{ID: "me", Health: 90, Body: pts(0, 0, 0, 1, 0, 2, 0, 3)},
		{ID: "other", Health: 90, Body: pts(1, 0, 2, 0, 3, 0)},
	}, nil, nil)

	if got := CandidateMoves(b, "me"); len(got) != 0 {
		t.Fatalf("candidates=%v want none", got)
	}
	tuning := config.DefaultTuning()
	tuning.Depth = 1
	d, err := New(tuning, quietLogger()).BestMove(context.Background(), sessionFor(b, "me"))
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if d.Move != game.Right {
		t.Fatalf("move=%s want=right", d.Move)
	}
	if heuristic.IsDead(d.Eval, tuning) {
		t.Fatalf("winning the collision should not score as dead")
	}
}

func TestDecide_TiesBrokenByEnumerationOrder(t *testing.T) {
	// Left and right are mirror images; left comes first.
	b := game.NewBoard(7, 7, []game.Snake{{ID: "me", Health: 100, Body: pts(3, 3, 3, 4, 3, 5)}}, nil, nil)
	s := sessionFor(b, "me")

	for _, depth := range []int{1, 2} {
		e := New(config.DefaultTuning(), quietLogger())
		d, err := e.Decide(context.Background(), s, b, "me", depth)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.Move != game.Left {
			t.Fatalf("depth %d move=%s want=left", depth, d.Move)
		}
		if d.Depth != depth {
			t.Fatalf("depth=%d want=%d", d.Depth, depth)
		}
	}
}

func TestDecide_ParallelMatchesSequential(t *testing.T) {
	b := game.NewBoard(11, 11, []game.Snake{
		{ID: "a", Health: 60, Body: pts(2, 2, 2, 3, 2, 4)},
		{ID: "b", Health: 70, Body: pts(8, 8, 8, 7, 8, 6, 8, 5)},
		{ID: "c", Health: 30, Body: pts(5, 1, 6, 1, 7, 1)},
	}, nil, pts(5, 5, 0, 10, 9, 2))

	for _, you := range []string{"a", "b", "c"} {
		s := sessionFor(b, you)

		seq := config.DefaultTuning()
		seq.Parallel = false
		par := config.DefaultTuning()
		par.Parallel = true

		d1, err := New(seq, quietLogger()).Decide(context.Background(), s, b, you, 3)
		if err != nil {
			t.Fatalf("sequential: %v", err)
		}
		d2, err := New(par, quietLogger()).Decide(context.Background(), s, b, you, 3)
		if err != nil {
			t.Fatalf("parallel: %v", err)
		}
		if d1 != d2 {
			t.Fatalf("%s: sequential=%+v parallel=%+v", you, d1, d2)
		}
	}
}

func TestDecide_DoesNotMutateBoard(t *testing.T) {
	b := game.NewBoard(7, 7, []game.Snake{
		{ID: "a", Health: 60, Body: pts(2, 2, 2, 3, 2, 4)},
		{ID: "b", Health: 70, Body: pts(4, 4, 4, 5, 4, 6)},
	}, nil, pts(3, 3))
	before := dumpBoard(b)

	if _, err := New(config.DefaultTuning(), quietLogger()).Decide(context.Background(), sessionFor(b, "a"), b, "a", 3); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if after := dumpBoard(b); after != before {
		t.Fatalf("board changed:\n%s\nvs\n%s", before, after)
	}
	if b.Snakes["a"].Health != 60 {
		t.Fatalf("health changed to %d", b.Snakes["a"].Health)
	}
}

func TestDecide_CancelledContext(t *testing.T) {
	b := game.NewBoard(7, 7, []game.Snake{{ID: "me", Health: 100, Body: pts(3, 3, 3, 4, 3, 5)}}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(config.DefaultTuning(), quietLogger()).Decide(ctx, sessionFor(b, "me"), b, "me", 2)
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestBestMove_ExpiredDeadlineFallsBackToDepthOne(t *testing.T) {
	b := game.NewBoard(7, 7, []game.Snake{{ID: "me", Health: 100, Body: pts(3, 3, 3, 4, 3, 5)}}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	for _, iterative := range []bool{false, true} {
		tuning := config.DefaultTuning()
		tuning.Depth = 4
		tuning.IterativeDeepening = iterative
		d, err := New(tuning, quietLogger()).BestMove(ctx, sessionFor(b, "me"))
		if err != nil {
			t.Fatalf("iterative=%v: %v", iterative, err)
		}
		if d.Depth != 1 {
			t.Fatalf("iterative=%v depth=%d want=1", iterative, d.Depth)
		}
	}
}

func TestBestMove_IterativeReachesMaxDepth(t *testing.T) {
	b := game.NewBoard(7, 7, []game.Snake{{ID: "me", Health: 100, Body: pts(3, 3, 3, 4, 3, 5)}}, nil, pts(0, 0))
	tuning := config.DefaultTuning()
	tuning.IterativeDeepening = true
	tuning.MaxDepth = 3

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	d, err := New(tuning, quietLogger()).BestMove(ctx, sessionFor(b, "me"))
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if d.Depth != 3 {
		t.Fatalf("depth=%d want=3", d.Depth)
	}
}

func TestScoreMoves_MarksCandidates(t *testing.T) {
	b := game.NewBoard(5, 5, []game.Snake{{ID: "me", Health: 90, Body: pts(0, 0, 0, 1, 0, 2)}}, nil, nil)
	tuning := config.DefaultTuning()
	scores, err := New(tuning, quietLogger()).ScoreMoves(context.Background(), sessionFor(b, "me"), b, "me", 1)
	if err != nil {
		t.Fatalf("ScoreMoves: %v", err)
	}
	if len(scores) != 4 {
		t.Fatalf("len=%d want=4", len(scores))
	}
	for _, sm := range scores {
		wantCandidate := sm.Move == game.Right
		if sm.Candidate != wantCandidate {
			t.Fatalf("%s candidate=%v want=%v", sm.Move, sm.Candidate, wantCandidate)
		}
		if !wantCandidate && !heuristic.IsDead(sm.Eval, tuning) {
			t.Fatalf("%s eval=%s want dead", sm.Move, sm.Eval)
		}
	}
}

func BenchmarkBestMove_Duel(b *testing.B) {
	board := game.NewBoard(11, 11, []game.Snake{
		{ID: "me", Health: 80, Body: pts(2, 2, 2, 3, 2, 4, 2, 5)},
		{ID: "them", Health: 80, Body: pts(8, 8, 8, 7, 8, 6, 8, 5)},
	}, nil, pts(5, 5, 0, 10))
	s := sessionFor(board, "me")

	for _, depth := range []int{1, 2, 3} {
		tuning := config.DefaultTuning()
		tuning.Depth = depth
		e := New(tuning, quietLogger())
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := e.BestMove(context.Background(), s); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
