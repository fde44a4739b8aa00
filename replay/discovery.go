// Package replay downloads recorded games from the public arena and compares
// what the engine would have played with what each snake actually did.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DiscoveryConfig controls the leaderboard crawl.
type DiscoveryConfig struct {
	// LeaderboardURLs are crawled in order. Relative player and game links
	// are resolved against each page's URL.
	LeaderboardURLs []string
	// RequestDelay is slept between player pages.
	RequestDelay time.Duration
	// MaxPlayers caps the players checked per leaderboard. Zero means all.
	MaxPlayers int
	UserAgent  string
}

func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		LeaderboardURLs: []string{
			"https://play.battlesnake.com/leaderboard/standard",
			"https://play.battlesnake.com/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   50,
		UserAgent:    "snekahead-replay/1.0",
	}
}

// Seen reports ids that were already processed. *store.SeenLog implements it.
type Seen interface {
	Has(id string) bool
}

var (
	gameIDRe = regexp.MustCompile(`/game/([a-f0-9-]+)`)
	playerRe = regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`)
	arenaRe  = regexp.MustCompile(`/leaderboard/([^/]+)/?$`)
)

// Discoverer finds game ids by crawling leaderboards and each listed player's
// stats page.
type Discoverer struct {
	cfg    DiscoveryConfig
	client *http.Client
	seen   Seen
	logger *slog.Logger
	known  map[string]bool
}

func NewDiscoverer(cfg DiscoveryConfig, seen Seen, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		seen:   seen,
		logger: logger,
		known:  make(map[string]bool),
	}
}

type player struct {
	username string
	statsURL string
}

// Discover sends every new game id to out and returns how many were sent.
// Errors on individual pages are logged and skipped. It returns early with
// ctx's error when ctx is done. out is not closed.
func (d *Discoverer) Discover(ctx context.Context, out chan<- string) (int, error) {
	total := 0
	for _, board := range d.cfg.LeaderboardURLs {
		arena := "unknown"
		if m := arenaRe.FindStringSubmatch(board); len(m) >= 2 {
			arena = m[1]
		}

		players, err := d.leaderboardPlayers(ctx, board)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			d.logger.Warn("leaderboard fetch failed", "url", board, "err", err)
			continue
		}
		if d.cfg.MaxPlayers > 0 && len(players) > d.cfg.MaxPlayers {
			players = players[:d.cfg.MaxPlayers]
		}
		d.logger.Info("leaderboard loaded", "arena", arena, "players", len(players))

		found := 0
		for i, p := range players {
			ids, err := d.playerGames(ctx, p.statsURL)
			if err != nil {
				if ctx.Err() != nil {
					return total, ctx.Err()
				}
				d.logger.Warn("player games fetch failed", "player", p.username, "err", err)
				continue
			}
			for _, id := range ids {
				if d.known[id] || (d.seen != nil && d.seen.Has(id)) {
					continue
				}
				d.known[id] = true
				select {
				case out <- id:
				case <-ctx.Done():
					return total, ctx.Err()
				}
				found++
				total++
			}
			d.logger.Debug("player checked", "arena", arena, "player", p.username, "n", i+1, "of", len(players), "games", len(ids))

			if d.cfg.RequestDelay > 0 {
				select {
				case <-time.After(d.cfg.RequestDelay):
				case <-ctx.Done():
					return total, ctx.Err()
				}
			}
		}
		d.logger.Info("leaderboard done", "arena", arena, "new_games", found)
	}
	return total, nil
}

func (d *Discoverer) fetch(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, base, nil
}

func (d *Discoverer) leaderboardPlayers(ctx context.Context, pageURL string) ([]player, error) {
	doc, base, err := d.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var players []player
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[m[1]] = true
		players = append(players, player{username: m[1], statsURL: base.ResolveReference(ref).String()})
	})
	return players, nil
}

func (d *Discoverer) playerGames(ctx context.Context, statsURL string) ([]string, error) {
	doc, _, err := d.fetch(ctx, statsURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if m := gameIDRe.FindStringSubmatch(href); len(m) >= 2 && !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	})
	return ids, nil
}
