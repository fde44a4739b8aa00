package game

// Update applies one simultaneous turn and returns the resulting board.
// The receiver is never modified, so sibling branches of a search can each
// call Update on the same board.
//
// Order of events:
//  1. every live snake with a move advances its head and drops its tail
//  2. every live snake loses one health, then deaths are resolved: starvation,
//     leaving the grid, body collisions and lost head-to-head collisions
//  3. survivors standing on food grow, are reset to MaxHealth and the food
//     is consumed
//  4. the grid is rebuilt
//
// Ids in moves that are unknown or already dead are ignored. Live snakes
// without a move stay where they are but still lose health. Food is never
// respawned here; see ApplyFoodSettings.
func (b *Board) Update(moves map[string]Move) *Board {
	next := b.Clone()

	moved := make(map[string]bool, len(moves))
	for id, m := range moves {
		s, ok := next.Snakes[id]
		if !ok || len(s.Body) == 0 {
			continue
		}
		s.advance(m)
		moved[id] = true
	}

	for _, s := range next.Snakes {
		s.Health--
	}

	var dead []string
	for id, s := range next.Snakes {
		if !next.survives(s, moved[id]) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		next.Dead[id] = next.Snakes[id]
		delete(next.Snakes, id)
	}

	// Two snakes can only share a food cell if one of them lost the head-to-head
	// above, so each remaining food cell has at most one claimant.
	for _, s := range next.Snakes {
		head := s.Head()
		if _, ok := next.Food[head]; !ok {
			continue
		}
		s.grow()
		s.Health = MaxHealth
		delete(next.Food, head)
	}

	next.rebuildGrid()
	return next
}

// survives evaluates the death conditions for s against the post-move board.
// Every snake is judged against the same snapshot, so the outcome does not
// depend on map iteration order.
func (b *Board) survives(s *Snake, moved bool) bool {
	head := s.Head()

	if !b.InBounds(head) {
		return false
	}

	if s.Health <= 0 {
		return false
	}

	if moved {
		for _, p := range s.Body[1:] {
			if p == head {
				return false
			}
		}
	}

	longest := 0
	for _, other := range b.Snakes {
		if other == s {
			continue
		}
		for _, p := range other.Body[1:] {
			if p == head {
				return false
			}
		}
		if other.Head() == head && other.Len() > longest {
			longest = other.Len()
		}
	}
	if longest > 0 && s.Len() <= longest {
		return false
	}

	return true
}
