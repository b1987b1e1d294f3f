package acoustic

import (
	"fmt"

	"github.com/ieee0824/wordrecog/internal/mathutil"
)

// Forward computes the forward variable alpha[t][j] in log domain.
// alpha[t][j] = log P(o_1..o_t, q_t=j | model)
func (h *WordHMM) Forward(obs [][]float64) [][]float64 {
	T := len(obs)
	N := h.NumStates()
	emit := mathutil.NewMat(T, N)
	alpha := mathutil.NewMat(T, N)
	h.computeEmissions(obs, emit)
	h.forwardWithEmit(emit, alpha)
	return alpha
}

// computeEmissions fills emit[t][s] = log P(obs[t] | state s).
// Iterates state-outer, frame-inner to keep each GMM's packed data in cache.
func (h *WordHMM) computeEmissions(obs [][]float64, emit [][]float64) {
	col := make([]float64, len(obs))
	for s, gmm := range h.States {
		gmm.LogProbBatch(obs, col)
		for t := range obs {
			emit[t][s] = col[t]
		}
	}
}

// forwardWithEmit runs the forward recursion over pre-computed emissions.
// alpha must have len(emit) rows of NumStates columns.
func (h *WordHMM) forwardWithEmit(emit [][]float64, alpha [][]float64) {
	T := len(emit)
	if T == 0 {
		return
	}
	N := h.NumStates()
	mathutil.FillMat(alpha, mathutil.LogZero)

	for j := 0; j < N; j++ {
		if !mathutil.IsLogZero(h.StartLog[j]) {
			alpha[0][j] = h.StartLog[j] + emit[0][j]
		}
	}

	for t := 1; t < T; t++ {
		for j := 0; j < N; j++ {
			logSum := mathutil.LogZero
			for i := 0; i < N; i++ {
				if mathutil.IsLogZero(alpha[t-1][i]) || mathutil.IsLogZero(h.TransLog[i][j]) {
					continue
				}
				logSum = mathutil.LogAdd(logSum, alpha[t-1][i]+h.TransLog[i][j])
			}
			if !mathutil.IsLogZero(logSum) {
				alpha[t][j] = logSum + emit[t][j]
			}
		}
	}
}

// totalLogLikelihood sums the last forward row: log P(O | model).
func totalLogLikelihood(alpha [][]float64) float64 {
	if len(alpha) == 0 {
		return mathutil.LogZero
	}
	return mathutil.LogSum(alpha[len(alpha)-1])
}

// SplitSequences cuts a concatenated observation matrix into the
// sub-sequences described by lengths. A nil or empty lengths vector means
// the whole matrix is one sequence. The returned slices alias obs.
func SplitSequences(obs [][]float64, lengths []int) ([][][]float64, error) {
	if len(lengths) == 0 {
		return [][][]float64{obs}, nil
	}
	seqs := make([][][]float64, 0, len(lengths))
	off := 0
	for k, n := range lengths {
		if n <= 0 {
			return nil, fmt.Errorf("%w: length[%d] = %d", ErrLengthMismatch, k, n)
		}
		if off+n > len(obs) {
			return nil, fmt.Errorf("%w: lengths exceed %d frames", ErrLengthMismatch, len(obs))
		}
		seqs = append(seqs, obs[off:off+n])
		off += n
	}
	if off != len(obs) {
		return nil, fmt.Errorf("%w: lengths sum to %d, have %d frames", ErrLengthMismatch, off, len(obs))
	}
	return seqs, nil
}

// Score returns log P(obs | model), treating obs as the concatenation of
// independent sequences whose sizes are given by lengths. The result is the
// sum of the per-sequence forward log-likelihoods, or -Inf if any sequence
// has no path through the model.
func (h *WordHMM) Score(obs [][]float64, lengths []int) (float64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	if len(obs) == 0 {
		return 0, ErrNoObservations
	}
	for t, o := range obs {
		if len(o) != h.FeatureDim {
			return 0, fmt.Errorf("%w: frame %d has %d features, model %q expects %d",
				ErrDimensionMismatch, t, len(o), h.Word, h.FeatureDim)
		}
	}
	seqs, err := SplitSequences(obs, lengths)
	if err != nil {
		return 0, err
	}

	// Workspaces sized for the longest sequence, reused across sequences.
	maxT := 0
	for _, seq := range seqs {
		maxT = max(maxT, len(seq))
	}
	N := h.NumStates()
	emit := mathutil.NewMat(maxT, N)
	alpha := mathutil.NewMat(maxT, N)

	total := 0.0
	for _, seq := range seqs {
		T := len(seq)
		h.computeEmissions(seq, emit[:T])
		h.forwardWithEmit(emit[:T], alpha[:T])
		ll := totalLogLikelihood(alpha[:T])
		if mathutil.IsLogZero(ll) {
			return mathutil.NegInf(ll), nil
		}
		total += ll
	}
	return total, nil
}
