// Package game defines the board model and the turn transition rules.
//
// Coordinates follow the legacy snake API: (0,0) is the top-left cell and y
// grows downward, so Up decreases y.
package game

import "fmt"

// Point is a board coordinate.
type Point struct {
	X int
	Y int
}

// Distance returns the Manhattan distance between two points.
func (p Point) Distance(o Point) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Move is one of the four directions a snake can take each turn.
type Move int

const (
	Up Move = iota
	Down
	Left
	Right
)

// Moves lists every move in enumeration order. Search ties are broken by this order.
var Moves = [4]Move{Up, Down, Left, Right}

var moveDeltas = [4]Point{
	Up:    {X: 0, Y: -1},
	Down:  {X: 0, Y: 1},
	Left:  {X: -1, Y: 0},
	Right: {X: 1, Y: 0},
}

var moveNames = [4]string{
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

// Delta returns the (dx, dy) displacement of the move.
func (m Move) Delta() (int, int) {
	d := moveDeltas[m&3]
	return d.X, d.Y
}

// Apply returns p translated by the move.
func (m Move) Apply(p Point) Point {
	d := moveDeltas[m&3]
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// String returns the wire token for the move.
func (m Move) String() string {
	if m < Up || m > Right {
		return fmt.Sprintf("Move(%d)", int(m))
	}
	return moveNames[m]
}

// ParseMove converts a wire token back into a Move.
func ParseMove(s string) (Move, error) {
	for i, name := range moveNames {
		if name == s {
			return Move(i), nil
		}
	}
	return Up, fmt.Errorf("unknown move %q", s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
