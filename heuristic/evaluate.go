// Package heuristic scores a board from one snake's point of view.
//
// The score is a vector in priority order: keep a path to our own tail,
// keep open space, then get long and stay near food.
package heuristic

import (
	"math"

	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/pathfind"
)

// Dead is the evaluation of any board where the snake has died. Its leading
// component is below anything a live snake can score.
func Dead(t config.Tuning) Evaluation {
	return Evaluation{-t.DeadPenalty, 0, 0}
}

// IsDead reports whether e is the dead sentinel for t.
func IsDead(e Evaluation, t config.Tuning) bool {
	return e == Dead(t)
}

// Evaluate scores b for the snake id.
func Evaluate(b *game.Board, id string, t config.Tuning) Evaluation {
	s, ok := b.Snake(id)
	if !ok {
		return Dead(t)
	}

	var e Evaluation
	e[TailSafety] = tailSafety(b, s, t)
	e[Space] = float64(pathfind.ReachableArea(b, s.Head()) + s.Len())
	e[Food] = -float64(foodDistance(b, s)) + float64(s.Len())*t.FoodScoreWeight
	return e
}

// TailLeash is how far from its own tail a snake at the given health may
// drift before being penalised. A full snake is never penalised.
func TailLeash(health, width, height int, t config.Tuning) float64 {
	if health >= game.MaxHealth {
		return math.Inf(1)
	}
	hunger := float64(game.MaxHealth-health) / float64(game.MaxHealth)
	return t.TailLeashBase + hunger*float64(width+height)
}

func tailSafety(b *game.Board, s *game.Snake, t config.Tuning) float64 {
	d, _, ok := pathfind.TravelDistance(b, s.Head(), []game.Point{s.Tail()}, b.Width*b.Height)
	if !ok {
		return -pathfind.Unreachable
	}
	allowed := TailLeash(s.Health, b.Width, b.Height, t)
	if float64(d) <= allowed {
		return 0
	}
	return allowed - float64(d)
}

func foodDistance(b *game.Board, s *game.Snake) int {
	if len(b.Food) == 0 {
		return 0
	}
	d, _, ok := pathfind.TravelDistance(b, s.Head(), b.FoodList(), b.Width*b.Height)
	if !ok {
		return b.Width * b.Height
	}
	return d
}
