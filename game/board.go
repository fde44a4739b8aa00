package game

import "sort"

// Entity marks what currently occupies a grid cell.
type Entity uint8

const (
	Empty Entity = iota
	Head
	Body
	Food
)

func (e Entity) String() string {
	switch e {
	case Head:
		return "HEAD"
	case Body:
		return "BODY"
	case Food:
		return "FOOD"
	default:
		return "EMPTY"
	}
}

// Board is the full game state: live snakes, dead snakes and food, plus an
// occupancy grid derived from them. The grid is a cache and is rebuilt after
// every mutation; it is never written independently.
type Board struct {
	Width  int
	Height int

	// Snakes holds the live snakes by id.
	Snakes map[string]*Snake
	// Dead holds snakes that have died. Entries are never removed.
	Dead map[string]*Snake
	Food map[Point]struct{}

	grid []Entity
}

// NewBoard builds a board from its entities and indexes the grid.
// Snakes listed in dead are recorded as already dead.
func NewBoard(width, height int, snakes, dead []Snake, food []Point) *Board {
	b := &Board{
		Width:  width,
		Height: height,
		Snakes: make(map[string]*Snake, len(snakes)),
		Dead:   make(map[string]*Snake, len(dead)),
		Food:   make(map[Point]struct{}, len(food)),
	}
	for i := range snakes {
		b.Snakes[snakes[i].ID] = snakes[i].clone()
	}
	for i := range dead {
		b.Dead[dead[i].ID] = dead[i].clone()
	}
	for _, f := range food {
		b.Food[f] = struct{}{}
	}
	b.rebuildGrid()
	return b
}

// Clone returns a deep copy. The copy shares no mutable state with b.
func (b *Board) Clone() *Board {
	out := &Board{
		Width:  b.Width,
		Height: b.Height,
		Snakes: make(map[string]*Snake, len(b.Snakes)),
		Dead:   make(map[string]*Snake, len(b.Dead)),
		Food:   make(map[Point]struct{}, len(b.Food)),
		grid:   make([]Entity, len(b.grid)),
	}
	for id, s := range b.Snakes {
		out.Snakes[id] = s.clone()
	}
	for id, s := range b.Dead {
		out.Dead[id] = s.clone()
	}
	for f := range b.Food {
		out.Food[f] = struct{}{}
	}
	copy(out.grid, b.grid)
	return out
}

// InBounds reports whether p lies on the grid.
func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Entity returns the grid entry at p. Out of bounds cells read as Empty;
// callers check InBounds first.
func (b *Board) Entity(p Point) Entity {
	if !b.InBounds(p) {
		return Empty
	}
	return b.grid[p.Y*b.Width+p.X]
}

// Snake returns the live snake with the given id.
func (b *Board) Snake(id string) (*Snake, bool) {
	s, ok := b.Snakes[id]
	return s, ok
}

// IsDead reports whether id is recorded as dead on this board.
func (b *Board) IsDead(id string) bool {
	_, ok := b.Dead[id]
	return ok
}

// HasFood reports whether p holds food.
func (b *Board) HasFood(p Point) bool {
	_, ok := b.Food[p]
	return ok
}

// LiveIDs returns the ids of all live snakes in sorted order.
func (b *Board) LiveIDs() []string {
	ids := make([]string, 0, len(b.Snakes))
	for id := range b.Snakes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FoodList returns the food cells sorted by row then column.
func (b *Board) FoodList() []Point {
	out := make([]Point, 0, len(b.Food))
	for f := range b.Food {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (b *Board) rebuildGrid() {
	n := b.Width * b.Height
	if n < 0 {
		n = 0
	}
	if cap(b.grid) >= n {
		b.grid = b.grid[:n]
		for i := range b.grid {
			b.grid[i] = Empty
		}
	} else {
		b.grid = make([]Entity, n)
	}

	for f := range b.Food {
		b.mark(f, Food)
	}
	for _, s := range b.Snakes {
		for _, p := range s.Body[1:] {
			b.mark(p, Body)
		}
	}
	// Heads last so a head sharing a cell with another body still reads as a head.
	for _, s := range b.Snakes {
		b.mark(s.Head(), Head)
	}
}

func (b *Board) mark(p Point, e Entity) {
	if b.InBounds(p) {
		b.grid[p.Y*b.Width+p.X] = e
	}
}
