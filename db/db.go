// Package db keeps a SQLite record of every game played or analysed.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Game results.
const (
	ResultWon     = "won"
	ResultLost    = "lost"
	ResultDraw    = "draw"
	ResultPending = ""
)

var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection with serialized access.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Game is one row of the games table.
type Game struct {
	ID        string
	You       string
	Source    string
	Width     int
	Height    int
	StartedAt time.Time
	EndedAt   time.Time
	Turns     int
	Result    string
}

// Move is one decision made during a game.
type Move struct {
	GameID  string
	Turn    int
	Move    string
	Depth   int
	Elapsed time.Duration
}

// Open opens or creates the database at path and initialises the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite only supports one writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		you TEXT NOT NULL,
		source TEXT NOT NULL,          -- server, selfplay, replay
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		turns INTEGER DEFAULT 0,
		result TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS moves (
		game_id TEXT,
		turn INTEGER,
		move TEXT,
		depth INTEGER,
		elapsed_us INTEGER,
		PRIMARY KEY (game_id, turn),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE INDEX IF NOT EXISTS idx_games_source ON games(source);
	`

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StartGame records a new game. Starting a game that already exists is a no-op.
func (db *DB) StartGame(g Game) error {
	if g.StartedAt.IsZero() {
		g.StartedAt = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO games (id, you, source, width, height, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		g.ID, g.You, g.Source, g.Width, g.Height, g.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	return nil
}

// RecordMove stores a decision. A later decision for the same turn replaces it.
func (db *DB) RecordMove(m Move) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO moves (game_id, turn, move, depth, elapsed_us) VALUES (?, ?, ?, ?, ?)",
		m.GameID, m.Turn, m.Move, m.Depth, m.Elapsed.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert move %s/%d: %w", m.GameID, m.Turn, err)
	}
	return nil
}

// EndGame stores the final turn count and result.
func (db *DB) EndGame(id string, turns int, result string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(
		"UPDATE games SET ended_at = ?, turns = ?, result = ? WHERE id = ?",
		time.Now().UTC(), turns, result, id,
	)
	if err != nil {
		return fmt.Errorf("end game %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end game %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetGame loads one game.
func (db *DB) GetGame(id string) (Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(
		"SELECT id, you, source, width, height, started_at, ended_at, turns, result FROM games WHERE id = ?", id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return g, err
}

// RecentGames returns up to limit games, newest first.
func (db *DB) RecentGames(limit int) ([]Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT id, you, source, width, height, started_at, ended_at, turns, result FROM games ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Moves returns the recorded decisions of a game in turn order.
func (db *DB) Moves(gameID string) ([]Move, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT game_id, turn, move, depth, elapsed_us FROM moves WHERE game_id = ? ORDER BY turn", gameID)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	var out []Move
	for rows.Next() {
		var m Move
		var us int64
		if err := rows.Scan(&m.GameID, &m.Turn, &m.Move, &m.Depth, &us); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.Elapsed = time.Duration(us) * time.Microsecond
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResultCounts tallies finished games by result for one source.
func (db *DB) ResultCounts(source string) (map[string]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT result, COUNT(*) FROM games WHERE source = ? AND result != '' GROUP BY result", source)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out[result] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (Game, error) {
	var g Game
	var ended sql.NullTime
	if err := s.Scan(&g.ID, &g.You, &g.Source, &g.Width, &g.Height, &g.StartedAt, &ended, &g.Turns, &g.Result); err != nil {
		return Game{}, err
	}
	if ended.Valid {
		g.EndedAt = ended.Time
	}
	return g, nil
}
