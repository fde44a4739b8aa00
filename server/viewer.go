package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
)

// GameReader serves recorded games to the viewer API. *db.DB implements it.
type GameReader interface {
	RecentGames(limit int) ([]db.Game, error)
	GetGame(id string) (db.Game, error)
	Moves(gameID string) ([]db.Move, error)
	ResultCounts(source string) (map[string]int, error)
}

func WithGameReader(r GameReader) Option { return func(s *Server) { s.reader = r } }

type gameJSON struct {
	ID        string     `json:"id"`
	You       string     `json:"you"`
	Source    string     `json:"source"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Turns     int        `json:"turns"`
	Result    string     `json:"result"`
}

type moveJSON struct {
	Turn      int    `json:"turn"`
	Move      string `json:"move"`
	Depth     int    `json:"depth"`
	ElapsedUS int64  `json:"elapsed_us"`
}

func toGameJSON(g db.Game) gameJSON {
	out := gameJSON{
		ID:        g.ID,
		You:       g.You,
		Source:    g.Source,
		Width:     g.Width,
		Height:    g.Height,
		StartedAt: g.StartedAt,
		Turns:     g.Turns,
		Result:    g.Result,
	}
	if !g.EndedAt.IsZero() {
		ended := g.EndedAt
		out.EndedAt = &ended
	}
	return out
}

// SimulateRequest asks for the board after one simultaneous turn.
type SimulateRequest struct {
	State api.Snapshot      `json:"state"`
	Moves map[string]string `json:"moves"`
}

func (s *Server) registerViewer(r *gin.Engine) {
	r.POST("/api/simulate", s.handleSimulate)
	if s.reader == nil {
		return
	}
	r.GET("/api/games", s.handleGames)
	r.GET("/api/games/:id", s.handleGame)
	r.GET("/api/stats", s.handleStats)
}

func (s *Server) handleGames(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	games, err := s.reader.RecentGames(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gameJSON, 0, len(games))
	for _, g := range games {
		out = append(out, toGameJSON(g))
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

func (s *Server) handleGame(c *gin.Context) {
	id := c.Param("id")
	g, err := s.reader.GetGame(id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	moves, err := s.reader.Moves(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]moveJSON, 0, len(moves))
	for _, m := range moves {
		out = append(out, moveJSON{Turn: m.Turn, Move: m.Move, Depth: m.Depth, ElapsedUS: m.Elapsed.Microseconds()})
	}
	c.JSON(http.StatusOK, gin.H{"game": toGameJSON(g), "moves": out})
}

func (s *Server) handleStats(c *gin.Context) {
	source := c.DefaultQuery("source", "server")
	counts, err := s.reader.ResultCounts(source)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	winRate := 0.0
	if total > 0 {
		winRate = float64(counts[db.ResultWon]) / float64(total)
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "results": counts, "total": total, "win_rate": winRate})
}

// handleSimulate applies one turn to the posted state. Snakes without a move
// keep their heading, or go up when they have no neck.
func (s *Server) handleSimulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.State.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	board := req.State.Board()
	moves := make(map[string]game.Move, len(board.Snakes))
	for id, sn := range board.Snakes {
		moves[id] = heading(sn)
	}
	for id, tok := range req.Moves {
		m, err := game.ParseMove(tok)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		moves[id] = m
	}

	next := board.Update(moves)
	c.JSON(http.StatusOK, api.FromBoard(req.State.GameID, *req.State.Turn+1, req.State.You, next))
}

func heading(sn *game.Snake) game.Move {
	neck, ok := sn.Neck()
	if !ok || neck == sn.Head() {
		return game.Up
	}
	head := sn.Head()
	for _, m := range game.Moves {
		if m.Apply(neck) == head {
			return m
		}
	}
	return game.Up
}
