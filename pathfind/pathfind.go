// Package pathfind provides the graph searches the evaluator runs on a board:
// flood-fill reachability and a bounded multi-target A*.
//
// A cell is passable when it is in bounds and either empty, food, or the
// search's own start cell (which is about to be vacated).
package pathfind

import (
	"container/heap"

	"github.com/brensch/snekahead/game"
)

// Unreachable is the distance reported when no path exists or the search was
// pruned by its bound.
const Unreachable = 1 << 30

// ReachableArea counts the cells reachable from start, start included.
// It uses an explicit stack so large open boards cannot overflow the call stack.
func ReachableArea(b *game.Board, start game.Point) int {
	if !b.InBounds(start) {
		return 0
	}

	visited := make([]bool, b.Width*b.Height)
	stack := make([]game.Point, 0, 64)
	stack = append(stack, start)
	visited[start.Y*b.Width+start.X] = true

	count := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++

		for _, m := range game.Moves {
			n := m.Apply(p)
			if !b.InBounds(n) {
				continue
			}
			idx := n.Y*b.Width + n.X
			if visited[idx] || !passable(b, n, start) {
				continue
			}
			visited[idx] = true
			stack = append(stack, n)
		}
	}
	return count
}

// TravelDistance finds the shortest path from start to the nearest of targets.
// Target cells may be entered even when occupied, which lets callers measure
// the distance to a tail or a head.
//
// The search gives up as soon as the cheapest frontier entry's estimated cost
// exceeds bound. In that case, as when no path exists, it returns
// (Unreachable, zero point, false); a pruned search only proves the true
// distance is larger than bound.
func TravelDistance(b *game.Board, start game.Point, targets []game.Point, bound int) (int, game.Point, bool) {
	if len(targets) == 0 || !b.InBounds(start) {
		return Unreachable, game.Point{}, false
	}

	isTarget := make(map[game.Point]bool, len(targets))
	for _, t := range targets {
		if t == start {
			return 0, t, true
		}
		isTarget[t] = true
	}

	estimate := func(p game.Point) int {
		best := Unreachable
		for _, t := range targets {
			if d := p.Distance(t); d < best {
				best = d
			}
		}
		return best
	}

	cost := make([]int, b.Width*b.Height)
	for i := range cost {
		cost[i] = Unreachable
	}
	cost[start.Y*b.Width+start.X] = 0

	frontier := &queue{}
	heap.Push(frontier, node{p: start, g: 0, f: estimate(start)})

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(node)
		if cur.f > bound {
			return Unreachable, game.Point{}, false
		}
		if isTarget[cur.p] {
			return cur.g, cur.p, true
		}
		if cur.g > cost[cur.p.Y*b.Width+cur.p.X] {
			continue
		}

		for _, m := range game.Moves {
			n := m.Apply(cur.p)
			if !b.InBounds(n) {
				continue
			}
			if !isTarget[n] && !passable(b, n, start) {
				continue
			}
			g := cur.g + 1
			idx := n.Y*b.Width + n.X
			if g >= cost[idx] {
				continue
			}
			cost[idx] = g
			heap.Push(frontier, node{p: n, g: g, f: g + estimate(n)})
		}
	}

	return Unreachable, game.Point{}, false
}

func passable(b *game.Board, p, start game.Point) bool {
	if p == start {
		return true
	}
	switch b.Entity(p) {
	case game.Empty, game.Food:
		return true
	default:
		return false
	}
}

type node struct {
	p game.Point
	g int
	f int
}

// queue is a min-heap on f.
type queue []node

func (q queue) Len() int            { return len(q) }
func (q queue) Less(i, j int) bool  { return q[i].f < q[j].f }
func (q queue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(node)) }
func (q *queue) Pop() interface{} {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
