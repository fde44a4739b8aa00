package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func seedGames(t *testing.T, d *db.DB) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	games := []db.Game{
		{ID: "g1", You: "me", Source: "server", Width: 11, Height: 11, StartedAt: base},
		{ID: "g2", You: "me", Source: "server", Width: 7, Height: 7, StartedAt: base.Add(time.Minute)},
		{ID: "g3", You: "snake1", Source: "selfplay", Width: 7, Height: 7, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, g := range games {
		if err := d.StartGame(g); err != nil {
			t.Fatalf("start %s: %v", g.ID, err)
		}
	}
	for turn, mv := range []string{"up", "left", "down"} {
		if err := d.RecordMove(db.Move{GameID: "g1", Turn: turn, Move: mv, Depth: 3, Elapsed: 1500 * time.Microsecond}); err != nil {
			t.Fatalf("record move: %v", err)
		}
	}
	if err := d.EndGame("g1", 3, db.ResultWon); err != nil {
		t.Fatalf("end g1: %v", err)
	}
	if err := d.EndGame("g3", 10, db.ResultLost); err != nil {
		t.Fatalf("end g3: %v", err)
	}
}

func TestViewer_Games(t *testing.T) {
	d := openTestDB(t)
	seedGames(t, d)
	h := newTestServer(WithGameReader(d)).Handler()

	rec := get(t, h, "/api/games?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Games []gameJSON `json:"games"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Games) != 2 {
		t.Fatalf("got %d games, want 2", len(resp.Games))
	}
	if resp.Games[0].ID != "g3" || resp.Games[1].ID != "g2" {
		t.Errorf("order = %s, %s; want newest first", resp.Games[0].ID, resp.Games[1].ID)
	}
	if resp.Games[1].EndedAt != nil {
		t.Errorf("unfinished game has ended_at %v", resp.Games[1].EndedAt)
	}

	if rec := get(t, h, "/api/games?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestViewer_Game(t *testing.T) {
	d := openTestDB(t)
	seedGames(t, d)
	h := newTestServer(WithGameReader(d)).Handler()

	rec := get(t, h, "/api/games/g1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Game  gameJSON   `json:"game"`
		Moves []moveJSON `json:"moves"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Game.Result != db.ResultWon || resp.Game.Turns != 3 || resp.Game.EndedAt == nil {
		t.Errorf("game = %+v", resp.Game)
	}
	if len(resp.Moves) != 3 {
		t.Fatalf("got %d moves, want 3", len(resp.Moves))
	}
	if resp.Moves[1].Move != "left" || resp.Moves[1].ElapsedUS != 1500 {
		t.Errorf("move 1 = %+v", resp.Moves[1])
	}

	if rec := get(t, h, "/api/games/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing game status = %d, want 404", rec.Code)
	}
}

func TestViewer_Stats(t *testing.T) {
	d := openTestDB(t)
	seedGames(t, d)
	h := newTestServer(WithGameReader(d)).Handler()

	cases := []struct {
		source  string
		total   int
		winRate float64
	}{
		{"server", 1, 1},
		{"selfplay", 1, 0},
		{"replay", 0, 0},
	}
	for _, tc := range cases {
		rec := get(t, h, "/api/stats?source="+tc.source)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.source, rec.Code)
		}
		var resp struct {
			Total   int     `json:"total"`
			WinRate float64 `json:"win_rate"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Total != tc.total || resp.WinRate != tc.winRate {
			t.Errorf("%s: total=%d win_rate=%v, want %d %v", tc.source, resp.Total, resp.WinRate, tc.total, tc.winRate)
		}
	}
}

func TestViewer_NoReader(t *testing.T) {
	h := newTestServer().Handler()
	if rec := get(t, h, "/api/games"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without a game reader", rec.Code)
	}
}

func simulate(t *testing.T, h http.Handler, req SimulateRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return post(t, h, "/api/simulate", body)
}

func TestSimulate_AppliesTurn(t *testing.T) {
	h := newTestServer().Handler()
	state := api.FromBoard("g1", 3, "me", cornered())

	// other has no move and keeps heading down, off the board.
	rec := simulate(t, h, SimulateRequest{State: *state, Moves: map[string]string{"me": "down"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	next, err := api.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *next.Turn != 4 {
		t.Errorf("turn = %d, want 4", *next.Turn)
	}
	if len(next.Snakes) != 1 || next.Snakes[0].ID != "me" {
		t.Fatalf("live snakes = %+v, want only me", next.Snakes)
	}
	if head := next.Snakes[0].Coords[0]; head != (api.Coord{0, 1}) {
		t.Errorf("me head = %v, want [0 1]", head)
	}
	if *next.Snakes[0].HealthPoints != 79 {
		t.Errorf("me health = %d, want 79", *next.Snakes[0].HealthPoints)
	}
	if len(next.DeadSnakes) != 1 || next.DeadSnakes[0].ID != "other" {
		t.Errorf("dead snakes = %+v, want other", next.DeadSnakes)
	}
}

func TestSimulate_BadRequests(t *testing.T) {
	h := newTestServer().Handler()
	state := api.FromBoard("g1", 3, "me", cornered())

	if rec := simulate(t, h, SimulateRequest{State: *state, Moves: map[string]string{"me": "sideways"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown move status = %d, want 400", rec.Code)
	}

	bad := *state
	bad.Width = nil
	if rec := simulate(t, h, SimulateRequest{State: bad}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing width status = %d, want 400", rec.Code)
	}

	if rec := post(t, h, "/api/simulate", []byte("{")); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}
