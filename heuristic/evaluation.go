package heuristic

import (
	"fmt"
	"strconv"
	"strings"
)

// Components of an Evaluation, highest priority first.
const (
	TailSafety = iota
	Space
	Food
	numComponents
)

// Evaluation is an ordered score vector compared lexicographically: the first
// differing component decides, whatever the magnitude of later components.
type Evaluation [numComponents]float64

// Compare returns -1, 0 or 1 as e is less than, equal to or greater than o.
func (e Evaluation) Compare(o Evaluation) int {
	for i := range e {
		switch {
		case e[i] < o[i]:
			return -1
		case e[i] > o[i]:
			return 1
		}
	}
	return 0
}

func (e Evaluation) Less(o Evaluation) bool {
	return e.Compare(o) < 0
}

func (e Evaluation) Add(o Evaluation) Evaluation {
	for i := range e {
		e[i] += o[i]
	}
	return e
}

func (e Evaluation) Scale(f float64) Evaluation {
	for i := range e {
		e[i] *= f
	}
	return e
}

func (e Evaluation) String() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}
