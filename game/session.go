package game

import "sort"

// Session binds a board snapshot to the snake we control and the full roster
// of participants. It is created once per decision request and is immutable;
// WithBoard returns a new session instead of swapping the board in place.
type Session struct {
	GameID string
	Turn   int
	// You is the id of the controlled snake.
	You string
	// SnakeIDs lists every participant, including snakes that are already dead.
	SnakeIDs []string
	Board    *Board
}

// NewSession builds a session for you over b. The roster is taken from the
// board's live and dead snakes.
func NewSession(gameID string, turn int, you string, b *Board) *Session {
	ids := make([]string, 0, len(b.Snakes)+len(b.Dead))
	ids = append(ids, b.LiveIDs()...)
	for id := range b.Dead {
		ids = append(ids, id)
	}
	sort.Strings(ids[len(b.Snakes):])
	return &Session{
		GameID:   gameID,
		Turn:     turn,
		You:      you,
		SnakeIDs: ids,
		Board:    b,
	}
}

// Simulate returns the board that results from applying moves to b.
// b itself is left untouched.
func (s *Session) Simulate(b *Board, moves map[string]Move) *Board {
	return b.Update(moves)
}

// WithBoard returns a copy of the session pointing at b, one turn later.
func (s *Session) WithBoard(b *Board) *Session {
	out := *s
	out.Board = b
	out.Turn = s.Turn + 1
	return &out
}

// OtherSnakeIDs returns every participant except id, in roster order.
func (s *Session) OtherSnakeIDs(id string) []string {
	out := make([]string, 0, len(s.SnakeIDs))
	for _, other := range s.SnakeIDs {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}

// Alive reports whether the participant id is alive on the session's board.
func (s *Session) Alive(id string) bool {
	_, ok := s.Board.Snakes[id]
	return ok
}
