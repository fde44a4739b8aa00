// Package config holds the search tuning and process configuration helpers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Tuning collects every constant the evaluator and search depend on. A value
// is passed explicitly to both so alternate tunings can be tested side by side.
type Tuning struct {
	// Depth is the fixed lookahead depth used when IterativeDeepening is off.
	Depth int `json:"depth"`
	// MaxDepth caps iterative deepening.
	MaxDepth           int  `json:"max_depth"`
	IterativeDeepening bool `json:"iterative_deepening"`
	// Parallel scores root candidates concurrently.
	Parallel bool `json:"parallel"`

	DiscountFactor  float64 `json:"discount_factor"`
	FoodScoreWeight float64 `json:"food_score_weight"`
	// TailLeashBase is the tail distance always allowed, however hungry the snake is.
	TailLeashBase float64 `json:"tail_leash_base"`
	// DeadPenalty is the magnitude of the leading component of a dead evaluation.
	DeadPenalty float64 `json:"dead_penalty"`
}

// DefaultTuning returns the baseline configuration: fixed depth 2, discount 0.9.
func DefaultTuning() Tuning {
	return Tuning{
		Depth:              2,
		MaxDepth:           4,
		IterativeDeepening: false,
		Parallel:           true,
		DiscountFactor:     0.9,
		FoodScoreWeight:    100,
		TailLeashBase:      2,
		DeadPenalty:        1e12,
	}
}

var ErrInvalidTuning = errors.New("invalid tuning")

// Validate checks that t can drive a search.
func (t Tuning) Validate() error {
	switch {
	case t.Depth < 1:
		return fmt.Errorf("%w: depth=%d, must be >= 1", ErrInvalidTuning, t.Depth)
	case t.IterativeDeepening && t.MaxDepth < 1:
		return fmt.Errorf("%w: max_depth=%d, must be >= 1", ErrInvalidTuning, t.MaxDepth)
	case t.DiscountFactor <= 0 || t.DiscountFactor >= 1:
		return fmt.Errorf("%w: discount_factor=%v, must be in (0,1)", ErrInvalidTuning, t.DiscountFactor)
	case t.FoodScoreWeight < 0:
		return fmt.Errorf("%w: food_score_weight=%v, must be >= 0", ErrInvalidTuning, t.FoodScoreWeight)
	case t.TailLeashBase < 0:
		return fmt.Errorf("%w: tail_leash_base=%v, must be >= 0", ErrInvalidTuning, t.TailLeashBase)
	case t.DeadPenalty <= 0:
		return fmt.Errorf("%w: dead_penalty=%v, must be > 0", ErrInvalidTuning, t.DeadPenalty)
	}
	return nil
}

// LoadTuning reads a tuning file. Fields missing from the file keep their
// default values. If the file does not exist it is created with the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := SaveTuning(path, t); err != nil {
			return t, err
		}
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read tuning: %w", err)
	}

	if err := json.Unmarshal(data, &t); err != nil {
		return DefaultTuning(), fmt.Errorf("parse tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return DefaultTuning(), err
	}
	return t, nil
}

// SaveTuning writes t as indented JSON.
func SaveTuning(path string, t Tuning) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tuning dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tuning: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write tuning: %w", err)
	}
	return nil
}
