// Package render draws boards as text for logs and terminals, and as PNG
// images for the debug endpoint and tools.
package render

import (
	"fmt"
	"strings"

	"github.com/brensch/snekahead/game"
)

// ASCII draws b row by row, top row first (y grows downward).
//
//	O/o  the snake `you` (head/body)
//	S/s  any other snake
//	F    food
//	.    empty
//
// Pass an empty you to draw every snake as S/s.
func ASCII(b *game.Board, you string) string {
	grid := make([][]byte, b.Height)
	for y := range grid {
		grid[y] = make([]byte, b.Width)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}

	for f := range b.Food {
		if b.InBounds(f) {
			grid[f.Y][f.X] = 'F'
		}
	}

	for _, id := range b.LiveIDs() {
		s := b.Snakes[id]
		bodyChar, headChar := byte('s'), byte('S')
		if id == you {
			bodyChar, headChar = 'o', 'O'
		}
		// Tail first so the head wins on stacked cells.
		for i := len(s.Body) - 1; i >= 0; i-- {
			p := s.Body[i]
			if !b.InBounds(p) {
				continue
			}
			if i == 0 {
				grid[p.Y][p.X] = headChar
			} else {
				grid[p.Y][p.X] = bodyChar
			}
		}
	}

	var sb strings.Builder
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			sb.WriteByte(grid[y][x])
			if x < b.Width-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary lists every snake with its health, length and body, one per line,
// followed by the food. Dead snakes are marked.
func Summary(b *game.Board) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Size=%dx%d Food(%d):", b.Width, b.Height, len(b.Food))
	for _, f := range b.FoodList() {
		fmt.Fprintf(&sb, " %s", f)
	}
	sb.WriteByte('\n')

	write := func(s *game.Snake, dead bool) {
		tag := ""
		if dead {
			tag = " DEAD"
		}
		fmt.Fprintf(&sb, "Snake %s%s Health=%d Len=%d Body:", s.ID, tag, s.Health, s.Len())
		for _, p := range s.Body {
			fmt.Fprintf(&sb, " %s", p)
		}
		sb.WriteByte('\n')
	}
	for _, id := range b.LiveIDs() {
		write(b.Snakes[id], false)
	}
	for _, id := range sortedDead(b) {
		write(b.Dead[id], true)
	}
	return sb.String()
}
