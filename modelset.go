package wordrecog

import (
	"errors"
	"fmt"
	"sort"
)

// Scorer is a fitted word model. Score returns the log-likelihood of the
// observation matrix, split into sub-sequences by lengths. A non-nil error
// marks a scoring failure; the recognizer treats its cause as opaque.
type Scorer interface {
	Score(obs [][]float64, lengths []int) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(obs [][]float64, lengths []int) (float64, error)

// Score calls f(obs, lengths).
func (f ScorerFunc) Score(obs [][]float64, lengths []int) (float64, error) {
	return f(obs, lengths)
}

var (
	// ErrDuplicateLabel is returned when a label is added to a ModelSet twice.
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrEmptyLabel is returned when adding a model under the empty label,
	// which is reserved for "no guess".
	ErrEmptyLabel = errors.New("empty label")
	// ErrNilScorer is returned when adding a nil model.
	ErrNilScorer = errors.New("nil scorer")
)

type modelEntry struct {
	label  string
	scorer Scorer
}

// ModelSet is an ordered set of word models keyed by label.
// Iteration follows insertion order, and that order decides ties:
// among equal best scores the earliest-added label wins.
type ModelSet struct {
	entries []modelEntry
	index   map[string]int
}

// NewModelSet returns an empty ModelSet.
func NewModelSet() *ModelSet {
	return &ModelSet{index: make(map[string]int)}
}

// NewModelSetFromMap builds a ModelSet from a map, adding labels in
// lexicographic order so ties resolve the same way on every run.
func NewModelSetFromMap[S Scorer](models map[string]S) (*ModelSet, error) {
	labels := make([]string, 0, len(models))
	for label := range models {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	ms := NewModelSet()
	for _, label := range labels {
		if err := ms.Add(label, models[label]); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// Add appends a model under label.
func (ms *ModelSet) Add(label string, s Scorer) error {
	if label == "" {
		return ErrEmptyLabel
	}
	if isNilScorer(s) {
		return fmt.Errorf("%w: label %q", ErrNilScorer, label)
	}
	if ms.index == nil {
		ms.index = make(map[string]int)
	}
	if _, ok := ms.index[label]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}
	ms.index[label] = len(ms.entries)
	ms.entries = append(ms.entries, modelEntry{label: label, scorer: s})
	return nil
}

// MustAdd is like Add but panics on error. Intended for static model tables.
func (ms *ModelSet) MustAdd(label string, s Scorer) *ModelSet {
	if err := ms.Add(label, s); err != nil {
		panic(err)
	}
	return ms
}

// Len returns the number of models. A nil ModelSet is empty.
func (ms *ModelSet) Len() int {
	if ms == nil {
		return 0
	}
	return len(ms.entries)
}

// Labels returns the labels in iteration order.
func (ms *ModelSet) Labels() []string {
	labels := make([]string, ms.Len())
	for i := range labels {
		labels[i] = ms.entries[i].label
	}
	return labels
}

// Get returns the model stored under label.
func (ms *ModelSet) Get(label string) (Scorer, bool) {
	if ms == nil {
		return nil, false
	}
	i, ok := ms.index[label]
	if !ok {
		return nil, false
	}
	return ms.entries[i].scorer, true
}

func isNilScorer(s Scorer) bool {
	if s == nil {
		return true
	}
	if f, ok := s.(ScorerFunc); ok && f == nil {
		return true
	}
	return false
}
