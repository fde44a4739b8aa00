package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SeenLog tracks which game ids have already been processed. It is backed by
// an append-only file with one id per line, loaded into memory on open.
//
// A partial final line left by a crash is read back as an id that never
// matches, so the game is simply processed again.
type SeenLog struct {
	mu   sync.RWMutex
	path string
	file *os.File
	seen map[string]struct{}
}

func OpenSeenLog(path string) (*SeenLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}

	seen := make(map[string]struct{})
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id == "" {
				continue
			}
			seen[id] = struct{}{}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &SeenLog{path: path, file: file, seen: seen}, nil
}

func (l *SeenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *SeenLog) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[id]
	return ok
}

func (l *SeenLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// Add appends ids not yet recorded and syncs once.
func (l *SeenLog) Add(ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := l.seen[id]; ok {
			continue
		}
		if _, err := l.file.WriteString(id + "\n"); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		l.seen[id] = struct{}{}
		added++
	}

	if added == 0 {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
