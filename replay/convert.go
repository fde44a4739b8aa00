package replay

import (
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
)

// point flips an engine coordinate into the board convention where y grows
// downward.
func (g *Game) point(c FrameCoord) game.Point {
	return game.Point{X: c.X, Y: g.Height - 1 - c.Y}
}

// Board converts frame i into a board. Snakes with a death record or no
// health are placed among the dead.
func (g *Game) Board(i int) *game.Board {
	f := g.Frames[i]
	var live, dead []game.Snake
	for _, s := range f.Snakes {
		if len(s.Body) == 0 {
			continue
		}
		body := make([]game.Point, len(s.Body))
		for j, c := range s.Body {
			body[j] = g.point(c)
		}
		sn := game.Snake{ID: s.ID, Name: s.Name, Health: s.Health, Body: body}
		if s.Alive() {
			live = append(live, sn)
		} else {
			dead = append(dead, sn)
		}
	}
	food := make([]game.Point, 0, len(f.Food))
	for _, c := range f.Food {
		food = append(food, g.point(c))
	}
	return game.NewBoard(g.Width, g.Height, live, dead, food)
}

// ActualMove infers the move snakeID made from frame i to frame i+1 by
// comparing head positions. It fails when either frame lacks the snake, the
// snake was already dead in frame i, or the heads are not adjacent.
func (g *Game) ActualMove(i int, snakeID string) (game.Move, bool) {
	if i < 0 || i+1 >= len(g.Frames) {
		return 0, false
	}
	before, ok := g.frameSnake(i, snakeID)
	if !ok || !before.Alive() {
		return 0, false
	}
	after, ok := g.frameSnake(i+1, snakeID)
	if !ok {
		return 0, false
	}
	from, to := g.point(before.Body[0]), g.point(after.Body[0])
	for _, m := range game.Moves {
		if m.Apply(from) == to {
			return m, true
		}
	}
	return 0, false
}

func (g *Game) frameSnake(i int, id string) (FrameSnake, bool) {
	for _, s := range g.Frames[i].Snakes {
		if s.ID == id && len(s.Body) > 0 {
			return s, true
		}
	}
	return FrameSnake{}, false
}

// Result classifies the final frame from snakeID's view.
func (g *Game) Result(snakeID string) string {
	last := g.Frames[len(g.Frames)-1]
	var alive []string
	for _, s := range last.Snakes {
		if s.Alive() {
			alive = append(alive, s.ID)
		}
	}
	switch {
	case len(alive) == 0:
		return db.ResultDraw
	case len(alive) == 1 && alive[0] == snakeID:
		return db.ResultWon
	case len(alive) > 1:
		for _, id := range alive {
			if id == snakeID {
				return db.ResultDraw
			}
		}
	}
	return db.ResultLost
}
