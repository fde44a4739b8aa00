package game

// MaxHealth is the health a snake spawns with and is reset to after eating.
const MaxHealth = 100

// Snake is a single agent on the board. Body[0] is the head and the last
// element is the tail. A board owns its snakes; they only change through Update.
type Snake struct {
	ID     string
	Name   string
	Health int
	Body   []Point
}

func (s *Snake) Head() Point { return s.Body[0] }

func (s *Snake) Tail() Point { return s.Body[len(s.Body)-1] }

func (s *Snake) Len() int { return len(s.Body) }

// Neck returns the segment directly behind the head, if the snake has one.
func (s *Snake) Neck() (Point, bool) {
	if len(s.Body) < 2 {
		return Point{}, false
	}
	return s.Body[1], true
}

// TailStacked reports whether the tail occupies the same cell as the segment
// in front of it. A stacked tail does not vacate its cell on the next move.
func (s *Snake) TailStacked() bool {
	n := len(s.Body)
	return n >= 2 && s.Body[n-1] == s.Body[n-2]
}

func (s *Snake) clone() *Snake {
	out := &Snake{ID: s.ID, Name: s.Name, Health: s.Health}
	if len(s.Body) > 0 {
		out.Body = make([]Point, len(s.Body))
		copy(out.Body, s.Body)
	}
	return out
}

// advance shifts the body one step: new head in front, tail dropped.
func (s *Snake) advance(m Move) {
	head := m.Apply(s.Head())
	copy(s.Body[1:], s.Body[:len(s.Body)-1])
	s.Body[0] = head
}

// grow duplicates the tail so the snake is one segment longer.
func (s *Snake) grow() {
	s.Body = append(s.Body, s.Tail())
}
