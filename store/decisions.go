// Package store persists decision logs as Parquet batches and keeps the
// dedupe log of replayed games.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// DecisionRow records one move decision: the board it was made on, what the
// engine chose and how it scored it.
//
// Moves use the wire tokens (up/down/left/right). Actual is the move the snake
// really made when known (replays), empty otherwise.
type DecisionRow struct {
	GameID  string `parquet:"game_id,dict"`
	Turn    int32  `parquet:"turn"`
	SnakeID string `parquet:"snake_id,dict"`
	Width   int32  `parquet:"width"`
	Height  int32  `parquet:"height"`

	Move   string `parquet:"move,dict"`
	Actual string `parquet:"actual,dict,optional"`
	Depth  int32  `parquet:"depth"`

	TailSafety float64 `parquet:"tail_safety"`
	Space      float64 `parquet:"space"`
	Food       float64 `parquet:"food"`

	Candidates    int32 `parquet:"candidates"`
	ElapsedMicros int64 `parquet:"elapsed_us"`

	Source string `parquet:"source,dict"`
	// Snapshot is the request body in the legacy API format.
	Snapshot []byte `parquet:"snapshot,optional,zstd"`
}

const decisionSchema = "decision_row_v1"

// WriteDecisionBatch writes rows into outDir/tmp and then atomically moves the
// file into outDir, so readers never observe a partial file. It returns the
// final path.
func WriteDecisionBatch(outDir string, rows []DecisionRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("decisions_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("snapshot"),
		parquet.KeyValueMetadata("schema", decisionSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadDecisions loads every row of a decision file.
func ReadDecisions(path string) ([]DecisionRow, error) {
	rows, err := parquet.ReadFile[DecisionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// DecisionWriter buffers rows and writes a batch file every batchSize rows.
// It is safe for concurrent use.
type DecisionWriter struct {
	mu        sync.Mutex
	outDir    string
	batchSize int
	buf       []DecisionRow

	files   []string
	written int
}

func NewDecisionWriter(outDir string, batchSize int) (*DecisionWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DecisionWriter{outDir: outDir, batchSize: batchSize}, nil
}

// Record buffers row, flushing when the batch is full.
func (w *DecisionWriter) Record(row DecisionRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, row)
	if len(w.buf) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes any buffered rows.
func (w *DecisionWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *DecisionWriter) flushLocked() error {
	if len(w.buf) == 0 {
		return nil
	}
	path, err := WriteDecisionBatch(w.outDir, w.buf)
	if err != nil {
		return err
	}
	w.files = append(w.files, path)
	w.written += len(w.buf)
	w.buf = w.buf[:0]
	return nil
}

// Stats reports buffered rows, rows written and the files produced so far.
func (w *DecisionWriter) Stats() (buffered, written int, files []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf), w.written, append([]string(nil), w.files...)
}

// Close flushes remaining rows.
func (w *DecisionWriter) Close() error {
	return w.Flush()
}
