// Package acoustic implements Gaussian-mixture HMM word models and their
// log-likelihood scoring.
package acoustic

import (
	"errors"
	"fmt"
	"math"

	"github.com/ieee0824/wordrecog/internal/mathutil"
)

var (
	// ErrMalformedModel is returned when an HMM's parameters are inconsistent.
	ErrMalformedModel = errors.New("malformed model")
	// ErrNoObservations is returned when scoring an empty observation matrix.
	ErrNoObservations = errors.New("no observations")
	// ErrLengthMismatch is returned when a length vector does not partition the observations.
	ErrLengthMismatch = errors.New("lengths do not match observations")
	// ErrDimensionMismatch is returned when a frame's width differs from the model's feature dimension.
	ErrDimensionMismatch = errors.New("observation dimension mismatch")
)

// probTolerance bounds how far a probability row may sum away from 1.
const probTolerance = 1e-6

// WordHMM is a whole-word HMM with one GMM per emitting state.
// There are no non-emitting entry or exit states: StartLog gives the
// initial distribution and a sequence may end in any state.
type WordHMM struct {
	Word       string
	StartLog   []float64   // [N] log initial probabilities
	TransLog   [][]float64 // [N][N] log transition probabilities
	States     []*GMM      // [N] emission densities
	FeatureDim int
}

// NewWordHMM builds a word model from linear start and transition
// probabilities. Each probability vector must sum to 1.
func NewWordHMM(word string, startProb []float64, transProb [][]float64, states []*GMM) (*WordHMM, error) {
	if err := checkDistribution("start", startProb); err != nil {
		return nil, err
	}
	for i, row := range transProb {
		if err := checkDistribution(fmt.Sprintf("transition row %d", i), row); err != nil {
			return nil, err
		}
	}
	h := &WordHMM{
		Word:     word,
		StartLog: make([]float64, len(startProb)),
		TransLog: mathutil.MapMat(transProb, mathutil.SafeLog),
		States:   states,
	}
	for i, p := range startProb {
		h.StartLog[i] = mathutil.SafeLog(p)
	}
	if len(states) > 0 && states[0] != nil {
		h.FeatureDim = states[0].Dim
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("word %q: %w", word, err)
	}
	return h, nil
}

// NewLeftRightHMM builds a left-to-right word model that starts in the
// first state. Every state but the last has a 0.5 self-loop and a 0.5
// forward transition; the last state loops on itself.
func NewLeftRightHMM(word string, states []*GMM) (*WordHMM, error) {
	n := len(states)
	if n == 0 {
		return nil, fmt.Errorf("word %q: %w: no states", word, ErrMalformedModel)
	}
	start := make([]float64, n)
	start[0] = 1
	trans := mathutil.NewMat(n, n)
	for i := 0; i < n-1; i++ {
		trans[i][i] = 0.5
		trans[i][i+1] = 0.5
	}
	trans[n-1][n-1] = 1
	return NewWordHMM(word, start, trans, states)
}

func checkDistribution(name string, p []float64) error {
	sum := 0.0
	for i, v := range p {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s probability[%d] = %g", ErrMalformedModel, name, i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > probTolerance {
		return fmt.Errorf("%w: %s probabilities sum to %g", ErrMalformedModel, name, sum)
	}
	return nil
}

// NumStates returns the number of emitting states.
func (h *WordHMM) NumStates() int {
	return len(h.States)
}

// Validate checks that the model's shapes agree and that every state's
// GMM is well formed and precomputed.
// Fields are exported, so Score re-checks before every use.
func (h *WordHMM) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil model", ErrMalformedModel)
	}
	n := len(h.States)
	if n == 0 {
		return fmt.Errorf("%w: no states", ErrMalformedModel)
	}
	if len(h.StartLog) != n {
		return fmt.Errorf("%w: %d start probabilities for %d states", ErrMalformedModel, len(h.StartLog), n)
	}
	if len(h.TransLog) != n {
		return fmt.Errorf("%w: %d transition rows for %d states", ErrMalformedModel, len(h.TransLog), n)
	}
	for i, row := range h.TransLog {
		if len(row) != n {
			return fmt.Errorf("%w: transition row %d has %d entries, want %d", ErrMalformedModel, i, len(row), n)
		}
	}
	if h.FeatureDim <= 0 {
		return fmt.Errorf("%w: feature dimension %d", ErrMalformedModel, h.FeatureDim)
	}
	for i, s := range h.States {
		if s == nil {
			return fmt.Errorf("%w: state %d has no emission density", ErrMalformedModel, i)
		}
		if s.Dim != h.FeatureDim {
			return fmt.Errorf("%w: state %d dim %d, want %d", ErrMalformedModel, i, s.Dim, h.FeatureDim)
		}
		if err := s.validate(); err != nil {
			return fmt.Errorf("state %d: %w", i, err)
		}
	}
	return nil
}

// LogLikelihood computes log P(observation | state).
func (h *WordHMM) LogLikelihood(state int, obs []float64) float64 {
	if state < 0 || state >= len(h.States) || h.States[state] == nil {
		return mathutil.LogZero
	}
	return h.States[state].LogProb(obs)
}
