// Package api defines the wire format of the legacy snake API and converts
// requests into game sessions.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/brensch/snekahead/game"
)

// ErrInvalidSnapshot is returned for requests that are malformed or missing
// required fields. Such requests are rejected, never retried.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Coord is an [x, y] pair.
type Coord [2]int

func (c Coord) Point() game.Point { return game.Point{X: c[0], Y: c[1]} }

func FromPoint(p game.Point) Coord { return Coord{p.X, p.Y} }

// UnmarshalJSON rejects pairs that do not have exactly two elements.
func (c *Coord) UnmarshalJSON(data []byte) error {
	var xy []int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("coordinate %s: want [x, y]", data)
	}
	c[0], c[1] = xy[0], xy[1]
	return nil
}

// SnakeData is one snake in a snapshot. Coords are head first.
type SnakeData struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Taunt        string  `json:"taunt,omitempty"`
	HealthPoints *int    `json:"health_points"`
	Coords       []Coord `json:"coords"`
}

// Snapshot is the body of /start, /move and /end requests.
type Snapshot struct {
	GameID     string      `json:"game_id,omitempty"`
	Width      *int        `json:"width"`
	Height     *int        `json:"height"`
	Food       []Coord     `json:"food"`
	Snakes     []SnakeData `json:"snakes"`
	DeadSnakes []SnakeData `json:"dead_snakes"`
	Turn       *int        `json:"turn"`
	You        string      `json:"you"`
}

// MoveResponse answers /move.
type MoveResponse struct {
	Move  string `json:"move"`
	Taunt string `json:"taunt,omitempty"`
}

// StartResponse answers /start with the snake's static customization.
type StartResponse struct {
	Color   string `json:"color"`
	Name    string `json:"name"`
	HeadURL string `json:"head_url,omitempty"`
	Taunt   string `json:"taunt,omitempty"`
}

// Decode reads and validates a snapshot.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every required field is present and consistent.
func (s *Snapshot) Validate() error {
	switch {
	case s.Width == nil:
		return invalid("missing width")
	case s.Height == nil:
		return invalid("missing height")
	case s.Turn == nil:
		return invalid("missing turn")
	case s.Snakes == nil:
		return invalid("missing snakes")
	case s.Food == nil:
		return invalid("missing food")
	case s.You == "":
		return invalid("missing you")
	}
	if *s.Width <= 0 || *s.Height <= 0 {
		return invalid("board %dx%d", *s.Width, *s.Height)
	}
	if *s.Turn < 0 {
		return invalid("turn %d", *s.Turn)
	}

	for i, f := range s.Food {
		if !s.inBounds(f) {
			return invalid("food[%d] %v out of bounds", i, f)
		}
	}

	seen := make(map[string]bool, len(s.Snakes)+len(s.DeadSnakes))
	foundYou := false
	check := func(kind string, list []SnakeData, live bool) error {
		for i, sn := range list {
			if sn.ID == "" {
				return invalid("%s[%d] missing id", kind, i)
			}
			if seen[sn.ID] {
				return invalid("duplicate snake id %q", sn.ID)
			}
			seen[sn.ID] = true
			if sn.HealthPoints == nil {
				return invalid("%s %q missing health_points", kind, sn.ID)
			}
			if h := *sn.HealthPoints; h < 0 || h > game.MaxHealth {
				return invalid("%s %q health %d", kind, sn.ID, h)
			}
			if len(sn.Coords) == 0 {
				return invalid("%s %q has no coords", kind, sn.ID)
			}
			// Dead snakes may have left the board on their final move.
			if live {
				for j, c := range sn.Coords {
					if !s.inBounds(c) {
						return invalid("%s %q coords[%d] %v out of bounds", kind, sn.ID, j, c)
					}
				}
			}
			if sn.ID == s.You {
				foundYou = true
			}
		}
		return nil
	}
	if err := check("snakes", s.Snakes, true); err != nil {
		return err
	}
	if err := check("dead_snakes", s.DeadSnakes, false); err != nil {
		return err
	}
	if !foundYou {
		return invalid("you %q not in snakes or dead_snakes", s.You)
	}
	return nil
}

func (s *Snapshot) inBounds(c Coord) bool {
	return c[0] >= 0 && c[0] < *s.Width && c[1] >= 0 && c[1] < *s.Height
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
}

// Board builds a game board from a validated snapshot. The snapshot is not
// retained or modified.
func (s *Snapshot) Board() *game.Board {
	food := make([]game.Point, len(s.Food))
	for i, f := range s.Food {
		food[i] = f.Point()
	}
	return game.NewBoard(*s.Width, *s.Height, convertSnakes(s.Snakes), convertSnakes(s.DeadSnakes), food)
}

// Session builds the decision session for a validated snapshot.
func (s *Snapshot) Session() *game.Session {
	return game.NewSession(s.GameID, *s.Turn, s.You, s.Board())
}

func convertSnakes(in []SnakeData) []game.Snake {
	out := make([]game.Snake, len(in))
	for i, sn := range in {
		body := make([]game.Point, len(sn.Coords))
		for j, c := range sn.Coords {
			body[j] = c.Point()
		}
		health := 0
		if sn.HealthPoints != nil {
			health = *sn.HealthPoints
		}
		out[i] = game.Snake{ID: sn.ID, Name: sn.Name, Health: health, Body: body}
	}
	return out
}

// FromBoard renders b back into a snapshot, for tools that generate boards.
// Snakes are listed in id order and food in row order.
func FromBoard(gameID string, turn int, you string, b *game.Board) *Snapshot {
	w, h, tn := b.Width, b.Height, turn
	s := &Snapshot{
		GameID:     gameID,
		Width:      &w,
		Height:     &h,
		Turn:       &tn,
		You:        you,
		Food:       make([]Coord, 0, len(b.Food)),
		Snakes:     make([]SnakeData, 0, len(b.Snakes)),
		DeadSnakes: make([]SnakeData, 0, len(b.Dead)),
	}
	for _, f := range b.FoodList() {
		s.Food = append(s.Food, FromPoint(f))
	}
	for _, id := range b.LiveIDs() {
		s.Snakes = append(s.Snakes, snakeData(b.Snakes[id]))
	}
	for _, id := range sortedKeys(b.Dead) {
		s.DeadSnakes = append(s.DeadSnakes, snakeData(b.Dead[id]))
	}
	return s
}

func snakeData(sn *game.Snake) SnakeData {
	h := sn.Health
	coords := make([]Coord, len(sn.Body))
	for i, p := range sn.Body {
		coords[i] = FromPoint(p)
	}
	return SnakeData{ID: sn.ID, Name: sn.Name, HealthPoints: &h, Coords: coords}
}

func sortedKeys(m map[string]*game.Snake) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
