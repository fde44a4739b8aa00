package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/brensch/snekahead/api"
	"github.com/brensch/snekahead/config"
	"github.com/brensch/snekahead/logging"
	"github.com/brensch/snekahead/render"
	"github.com/brensch/snekahead/search"
	"github.com/brensch/snekahead/store"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "Snapshot JSON file (- for stdin)")
	decisionsPath := flag.String("decisions", "", "Parquet decision file to take the snapshot from")
	row := flag.Int("row", 0, "Row of -decisions to load")
	tuningPath := flag.String("tuning", "", "Tuning file (defaults when empty)")
	depth := flag.Int("depth", 0, "Search depth (0 uses the tuning)")
	timeout := flag.Duration("timeout", 0, "Run the full decision with this budget instead of a fixed depth")
	pngPath := flag.String("png", "", "Write a PNG of the board here")
	logLevel := flag.String("log-level", "warn", "debug, info, warn or error")
	flag.Parse()

	logger, err := logging.New(os.Stderr, logging.Options{Level: *logLevel})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	body, source, err := loadSnapshot(*snapshotPath, *decisionsPath, *row)
	if err != nil {
		log.Fatalf("load snapshot: %v", err)
	}
	snap, err := api.Decode(bytes.NewReader(body))
	if err != nil {
		log.Fatalf("decode %s: %v", source, err)
	}

	tuning, err := config.LoadTuning(*tuningPath)
	if err != nil {
		log.Fatalf("tuning: %v", err)
	}
	if *depth > 0 {
		tuning.Depth = *depth
		if tuning.MaxDepth < tuning.Depth {
			tuning.MaxDepth = tuning.Depth
		}
	}

	session := snap.Session()
	board := session.Board
	fmt.Printf("%s  game=%s turn=%d you=%s\n\n", source, session.GameID, session.Turn, session.You)
	fmt.Print(render.ASCII(board, session.You))
	fmt.Println()
	fmt.Println(render.Summary(board))

	if !session.Alive(session.You) {
		fmt.Printf("\n%s is dead; nothing to decide\n", session.You)
		return
	}

	fmt.Print("\ncandidates:")
	for _, m := range search.CandidateMoves(board, session.You) {
		fmt.Printf(" %s", m)
	}
	fmt.Println()

	engine := search.New(tuning, logger)
	ctx := context.Background()

	start := time.Now()
	scored, err := engine.ScoreMoves(ctx, session, board, session.You, tuning.Depth)
	if err != nil {
		log.Fatalf("score moves: %v", err)
	}
	fmt.Printf("\nscores at depth %d (%v):\n", tuning.Depth, time.Since(start).Round(time.Microsecond))
	for _, s := range scored {
		mark := " "
		if s.Candidate {
			mark = "*"
		}
		fmt.Printf("  %s %-5s %s\n", mark, s.Move, s.Eval)
	}

	var decision search.Decision
	start = time.Now()
	if *timeout > 0 {
		tctx, cancel := context.WithTimeout(ctx, *timeout)
		decision, err = engine.BestMove(tctx, session)
		cancel()
	} else {
		decision, err = engine.Decide(ctx, session, board, session.You, tuning.Depth)
	}
	if err != nil {
		log.Fatalf("decide: %v", err)
	}
	fmt.Printf("\ndecision: %s depth=%d eval=%s (%v)\n", decision.Move, decision.Depth, decision.Eval, time.Since(start).Round(time.Microsecond))

	if *pngPath != "" {
		opts := render.DefaultImageOptions
		opts.You = session.You
		if err := render.SavePNG(*pngPath, board, opts); err != nil {
			log.Fatalf("write png: %v", err)
		}
		fmt.Printf("board image written to %s\n", *pngPath)
	}
}

func loadSnapshot(path, decisions string, row int) ([]byte, string, error) {
	switch {
	case decisions != "":
		rows, err := store.ReadDecisions(decisions)
		if err != nil {
			return nil, "", err
		}
		if row < 0 || row >= len(rows) {
			return nil, "", fmt.Errorf("row %d out of range (file has %d)", row, len(rows))
		}
		r := rows[row]
		if len(r.Snapshot) == 0 {
			return nil, "", fmt.Errorf("row %d has no snapshot", row)
		}
		src := fmt.Sprintf("%s[%d] chosen=%s", decisions, row, r.Move)
		if r.Actual != "" {
			src += " actual=" + r.Actual
		}
		return r.Snapshot, src, nil
	case path == "-":
		b, err := io.ReadAll(os.Stdin)
		return b, "stdin", err
	case path != "":
		b, err := os.ReadFile(path)
		return b, path, err
	default:
		return nil, "", fmt.Errorf("one of -snapshot or -decisions is required")
	}
}
