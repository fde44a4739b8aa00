// Package server exposes the engine over the legacy snake HTTP API.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/db"
	"github.com/brensch/snekahead/game"
	"github.com/brensch/snekahead/render"
	"github.com/brensch/snekahead/search"
	"github.com/brensch/snekahead/store"
)

// GameRecorder persists game lifecycle events. *db.DB implements it.
type GameRecorder interface {
	StartGame(g db.Game) error
	RecordMove(m db.Move) error
	EndGame(id string, turns int, result string) error
}

// DecisionRecorder persists per-move decisions. *store.DecisionWriter implements it.
type DecisionRecorder interface {
	Record(row store.DecisionRow) error
}

type Config struct {
	Customization api.StartResponse
	// MoveBudget is the time the game server allows per move.
	MoveBudget time.Duration
	// LatencyReserve is kept back from MoveBudget for transport overhead.
	LatencyReserve time.Duration
	// MinCompute is the least search time granted however small the budget.
	MinCompute time.Duration
}

func DefaultConfig() Config {
	return Config{
		Customization: api.StartResponse{
			Color: "#2ecc71",
			Name:  "snekahead",
			Taunt: "looking ahead",
		},
		MoveBudget:     500 * time.Millisecond,
		LatencyReserve: 200 * time.Millisecond,
		MinCompute:     50 * time.Millisecond,
	}
}

// ComputeBudget is the search time granted for one move.
func (c Config) ComputeBudget() time.Duration {
	d := c.MoveBudget - c.LatencyReserve
	if d < c.MinCompute {
		d = c.MinCompute
	}
	return d
}

type Server struct {
	cfg       Config
	tuning    *config.TuningStore
	logger    *slog.Logger
	games     GameRecorder
	decisions DecisionRecorder
	reader    GameReader
}

type Option func(*Server)

func WithGameRecorder(r GameRecorder) Option { return func(s *Server) { s.games = r } }

func WithDecisionRecorder(r DecisionRecorder) Option { return func(s *Server) { s.decisions = r } }

func New(cfg Config, tuning *config.TuningStore, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, tuning: tuning, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleIndex)
	r.POST("/start", s.handleStart)
	r.POST("/move", s.handleMove)
	r.POST("/end", s.handleEnd)
	r.POST("/debug/render", s.handleRender)
	s.registerViewer(r)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Customization)
}

// readSnapshot decodes the body, answering 400 on failure. The raw body is
// returned for decision logs.
func (s *Server) readSnapshot(c *gin.Context) (*api.Snapshot, []byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	snap, err := api.Decode(bytes.NewReader(body))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrInvalidSnapshot) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return snap, body, true
}

func (s *Server) handleStart(c *gin.Context) {
	snap, _, ok := s.readSnapshot(c)
	if !ok {
		return
	}
	s.logger.Info("game started", "game", snap.GameID, "you", snap.You, "width", *snap.Width, "height", *snap.Height, "snakes", len(snap.Snakes))

	if s.games != nil && snap.GameID != "" {
		err := s.games.StartGame(db.Game{
			ID:     snap.GameID,
			You:    snap.You,
			Source: "server",
			Width:  *snap.Width,
			Height: *snap.Height,
		})
		if err != nil {
			s.logger.Warn("record game start failed", "game", snap.GameID, "err", err)
		}
	}

	c.JSON(http.StatusOK, s.cfg.Customization)
}

func (s *Server) handleMove(c *gin.Context) {
	start := time.Now()
	snap, body, ok := s.readSnapshot(c)
	if !ok {
		return
	}
	session := snap.Session()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ComputeBudget())
	defer cancel()

	engine := search.New(s.tuning.Load(), s.logger)
	decision, err := engine.BestMove(ctx, session)
	if err != nil {
		// Only reachable if even the depth 1 search fails.
		s.logger.Error("search failed", "game", session.GameID, "turn", session.Turn, "err", err)
		decision = search.Decision{Move: game.Up}
	}
	elapsed := time.Since(start)

	s.logger.Info("move",
		"game", session.GameID,
		"turn", session.Turn,
		"move", decision.Move.String(),
		"depth", decision.Depth,
		"eval", decision.Eval.String(),
		"elapsed", elapsed,
	)

	s.record(session, decision, body, elapsed)

	c.JSON(http.StatusOK, api.MoveResponse{
		Move:  decision.Move.String(),
		Taunt: s.cfg.Customization.Taunt,
	})
}

func (s *Server) record(session *game.Session, d search.Decision, body []byte, elapsed time.Duration) {
	if s.games != nil && session.GameID != "" {
		err := s.games.RecordMove(db.Move{
			GameID:  session.GameID,
			Turn:    session.Turn,
			Move:    d.Move.String(),
			Depth:   d.Depth,
			Elapsed: elapsed,
		})
		if err != nil {
			s.logger.Warn("record move failed", "game", session.GameID, "turn", session.Turn, "err", err)
		}
	}
	if s.decisions != nil {
		err := s.decisions.Record(store.DecisionRow{
			GameID:        session.GameID,
			Turn:          int32(session.Turn),
			SnakeID:       session.You,
			Width:         int32(session.Board.Width),
			Height:        int32(session.Board.Height),
			Move:          d.Move.String(),
			Depth:         int32(d.Depth),
			TailSafety:    d.Eval[0],
			Space:         d.Eval[1],
			Food:          d.Eval[2],
			Candidates:    int32(len(search.CandidateMoves(session.Board, session.You))),
			ElapsedMicros: elapsed.Microseconds(),
			Source:        "server",
			Snapshot:      body,
		})
		if err != nil {
			s.logger.Warn("record decision failed", "game", session.GameID, "turn", session.Turn, "err", err)
		}
	}
}

func (s *Server) handleEnd(c *gin.Context) {
	snap, _, ok := s.readSnapshot(c)
	if !ok {
		return
	}

	result := EndResult(snap)
	s.logger.Info("game ended", "game", snap.GameID, "turn", *snap.Turn, "result", result)

	if s.games != nil && snap.GameID != "" {
		if err := s.games.EndGame(snap.GameID, *snap.Turn, result); err != nil {
			s.logger.Warn("record game end failed", "game", snap.GameID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

// EndResult classifies a final snapshot from the controlled snake's view.
func EndResult(snap *api.Snapshot) string {
	for _, sn := range snap.Snakes {
		if sn.ID == snap.You {
			return db.ResultWon
		}
	}
	if len(snap.Snakes) == 0 {
		return db.ResultDraw
	}
	return db.ResultLost
}

// handleRender draws the posted snapshot as a PNG. ?size=N scales it to fit
// within N pixels.
func (s *Server) handleRender(c *gin.Context) {
	snap, _, ok := s.readSnapshot(c)
	if !ok {
		return
	}

	opts := render.DefaultImageOptions
	opts.You = snap.You
	img := render.Image(snap.Board(), opts)
	if v := c.Query("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be a positive integer"})
			return
		}
		img = render.Thumbnail(img, size)
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
