package search

import "github.com/brensch/snekahead/game"

// CandidateMoves returns the moves for id that are not certainly fatal one ply
// ahead, in enumeration order. A move is rejected when it leaves the board or
// lands on a body segment, tails excepted since they vacate this turn. Other
// snakes' upcoming moves are not considered.
//
// The result is empty when id is not a live snake or every move is rejected.
func CandidateMoves(b *game.Board, id string) []game.Move {
	s, ok := b.Snake(id)
	if !ok {
		return nil
	}

	out := make([]game.Move, 0, len(game.Moves))
	for _, m := range game.Moves {
		p := m.Apply(s.Head())
		if !b.InBounds(p) || blocked(b, p) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// blocked reports whether p holds any live snake segment other than a tail.
func blocked(b *game.Board, p game.Point) bool {
	if e := b.Entity(p); e != game.Head && e != game.Body {
		return false
	}
	for _, s := range b.Snakes {
		last := len(s.Body) - 1
		for i, q := range s.Body {
			if q == p && i != last {
				return true
			}
		}
	}
	return false
}
