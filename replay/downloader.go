package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNoFrames = errors.New("no frames received")

type DownloadConfig struct {
	// EngineURL is a websocket URL template taking the game id.
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// Event is one message of the engine's event stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type gameInfo struct {
	Game struct {
		ID      string `json:"id"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		Timeout int    `json:"timeout"`
	} `json:"game"`
	Ruleset struct {
		Name string `json:"name"`
	} `json:"ruleset"`
}

// Frame is the engine's view of one turn. Coordinates use the engine's
// convention where y grows upward.
type Frame struct {
	Turn   int          `json:"turn"`
	Snakes []FrameSnake `json:"snakes"`
	Food   []FrameCoord `json:"food"`
	Board  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"board"`
}

type FrameSnake struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Health int          `json:"health"`
	Body   []FrameCoord `json:"body"`
	Death  *Death       `json:"death,omitempty"`
}

func (s FrameSnake) Alive() bool { return s.Death == nil && s.Health > 0 }

type FrameCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Game is a downloaded game: its dimensions and every frame in turn order.
type Game struct {
	ID      string
	Width   int
	Height  int
	Ruleset string
	Frames  []Frame
}

// Downloader fetches games from the engine's websocket event stream.
type Downloader struct {
	cfg    DownloadConfig
	logger *slog.Logger
}

func NewDownloader(cfg DownloadConfig, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// Download reads the event stream of gameID until the game ends or the stream
// closes. A stream that breaks after some frames were received still yields
// those frames.
func (d *Downloader) Download(ctx context.Context, gameID string) (*Game, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf(d.cfg.EngineURL, gameID), nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", gameID, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	g := &Game{ID: gameID}
	var info gameInfo

read:
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || len(g.Frames) > 0 {
				d.logger.Debug("event stream closed", "game", gameID, "frames", len(g.Frames), "err", err)
				break
			}
			return nil, fmt.Errorf("read %s: %w", gameID, err)
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			d.logger.Debug("bad event", "game", gameID, "err", err)
			continue
		}
		switch ev.Type {
		case "game_info":
			if err := json.Unmarshal(ev.Data, &info); err != nil {
				d.logger.Debug("bad game_info", "game", gameID, "err", err)
			}
		case "frame":
			var f Frame
			if err := json.Unmarshal(ev.Data, &f); err != nil {
				d.logger.Debug("bad frame", "game", gameID, "err", err)
				continue
			}
			g.Frames = append(g.Frames, f)
		case "game_end":
			break read
		}
	}

	if len(g.Frames) == 0 {
		return nil, fmt.Errorf("%s: %w", gameID, ErrNoFrames)
	}

	g.Ruleset = info.Ruleset.Name
	g.Width, g.Height = info.Game.Width, info.Game.Height
	last := g.Frames[len(g.Frames)-1]
	if g.Width == 0 || g.Height == 0 {
		g.Width, g.Height = last.Board.Width, last.Board.Height
	}
	if g.Width == 0 || g.Height == 0 {
		return nil, fmt.Errorf("%s: board size missing from stream", gameID)
	}
	return g, nil
}
