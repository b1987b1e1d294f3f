package wordrecog

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/wordrecog/dataset"
	"github.com/ieee0824/wordrecog/internal/logging"
)

var errBoom = errors.New("boom")

func constScorer(v float64) Scorer {
	return ScorerFunc(func([][]float64, []int) (float64, error) { return v, nil })
}

func failingScorer() Scorer {
	return ScorerFunc(func([][]float64, []int) (float64, error) { return 0, errBoom })
}

// indexedSet yields one single-frame sample per index whose only value is
// the index itself, so fake scorers can tell samples apart.
type indexedSet struct {
	n      int
	failAt int // -1 for never
}

func (s indexedSet) NumSamples() int { return s.n }

func (s indexedSet) Sample(i int) ([][]float64, []int, error) {
	if i == s.failAt {
		return nil, nil, errBoom
	}
	return [][]float64{{float64(i)}}, []int{1}, nil
}

func oneSample() *dataset.Singles {
	ts := dataset.NewSingles()
	ts.Add("A", [][]float64{{0}})
	return ts
}

func quiet(opts ...Option) *Recognizer {
	return NewRecognizer(append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func TestRecognize_BestScoreWins(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", constScorer(-100)).
		MustAdd("B", constScorer(-50))

	res, err := quiet().Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	assert.Equal(t, []ScoreTable{{"A": -100, "B": -50}}, res.Probabilities)
	assert.Equal(t, []string{"B"}, res.Guesses)
	assert.Equal(t, []string{"A", "B"}, res.Labels)
	assert.Empty(t, res.Failures)
}

func TestRecognize_FailureBecomesNegInf(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", failingScorer()).
		MustAdd("B", constScorer(-50))

	res, err := quiet().Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	require.Len(t, res.Probabilities, 1)
	assert.True(t, math.IsInf(res.Probabilities[0]["A"], -1))
	assert.Equal(t, -50.0, res.Probabilities[0]["B"])
	assert.Equal(t, []string{"B"}, res.Guesses)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Sample)
	assert.Equal(t, "A", res.Failures[0].Label)
	assert.ErrorIs(t, res.Failures[0], errBoom)
}

func TestRecognize_TieKeepsFirst(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", constScorer(-50)).
		MustAdd("B", constScorer(-50))

	res, err := quiet().Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Guesses)

	reversed := NewModelSet().
		MustAdd("B", constScorer(-50)).
		MustAdd("A", constScorer(-50))
	res, err = quiet().Recognize(testContext(t), reversed, oneSample())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, res.Guesses)
}

func TestRecognize_AllFail(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", failingScorer()).
		MustAdd("B", failingScorer())

	res, err := quiet().Recognize(testContext(t), models, indexedSet{n: 2, failAt: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, res.Guesses)
	for _, table := range res.Probabilities {
		assert.Len(t, table, 2)
		for label, v := range table {
			assert.True(t, math.IsInf(v, -1), "label %s = %f", label, v)
		}
	}
	assert.Len(t, res.Failures, 4)
}

func TestRecognize_NaNIsFailure(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", constScorer(math.NaN())).
		MustAdd("B", constScorer(-7))

	res, err := quiet().Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.Probabilities[0]["A"], -1))
	assert.Equal(t, "B", res.Guesses[0])
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], ErrNaNScore)
}

func TestRecognize_PanicIsFailure(t *testing.T) {
	models := NewModelSet().
		MustAdd("A", ScorerFunc(func(obs [][]float64, _ []int) (float64, error) {
			return obs[0][5], nil
		})).
		MustAdd("B", constScorer(-5))

	for _, workers := range []int{1, 4} {
		res, err := quiet(WithWorkers(workers)).Recognize(testContext(t), models, indexedSet{n: 6, failAt: -1})
		require.NoError(t, err, "workers=%d", workers)
		require.Len(t, res.Failures, 6, "workers=%d", workers)
		for i, table := range res.Probabilities {
			assert.True(t, math.IsInf(table["A"], -1), "workers=%d sample %d", workers, i)
			assert.Equal(t, -5.0, table["B"])
			assert.Equal(t, "B", res.Guesses[i])
			assert.Equal(t, i, res.Failures[i].Sample)
			assert.Equal(t, "A", res.Failures[i].Label)
			assert.ErrorIs(t, res.Failures[i], ErrScorerPanic)
			assert.Contains(t, res.Failures[i].Error(), "index out of range")
		}
	}
}

func TestRecognize_NegInfScoreNeverGuessed(t *testing.T) {
	models := NewModelSet().MustAdd("A", constScorer(math.Inf(-1)))
	res, err := quiet().Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	assert.Equal(t, []string{""}, res.Guesses)
	assert.Empty(t, res.Failures)
}

func TestRecognize_EmptyModels(t *testing.T) {
	for _, models := range []*ModelSet{NewModelSet(), nil} {
		res, err := quiet().Recognize(testContext(t), models, indexedSet{n: 3, failAt: -1})
		require.NoError(t, err)
		assert.Equal(t, []string{"", "", ""}, res.Guesses)
		require.Len(t, res.Probabilities, 3)
		for _, table := range res.Probabilities {
			assert.Empty(t, table)
		}
		assert.Empty(t, res.Labels)
	}
}

func TestRecognize_EmptyTestSet(t *testing.T) {
	models := NewModelSet().MustAdd("A", constScorer(-1))
	res, err := quiet().Recognize(testContext(t), models, dataset.NewSingles())
	require.NoError(t, err)
	assert.Empty(t, res.Probabilities)
	assert.Empty(t, res.Guesses)
}

func TestRecognize_NilTestSet(t *testing.T) {
	_, err := quiet().Recognize(testContext(t), NewModelSet(), nil)
	assert.ErrorIs(t, err, ErrNilTestSet)
}

func TestRecognize_SampleErrorAborts(t *testing.T) {
	models := NewModelSet().MustAdd("A", constScorer(-1))
	for _, workers := range []int{1, 4} {
		_, err := quiet(WithWorkers(workers)).Recognize(testContext(t), models, indexedSet{n: 10, failAt: 6})
		require.Error(t, err, "workers=%d", workers)
		assert.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "sample 6")
	}
}

func TestRecognize_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	models := NewModelSet().MustAdd("A", constScorer(-1))
	for _, workers := range []int{1, 3} {
		_, err := quiet(WithWorkers(workers)).Recognize(ctx, models, indexedSet{n: 5, failAt: -1})
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}

func TestRecognize_PassesSampleThrough(t *testing.T) {
	ts := dataset.NewSingles()
	ts.Add("X", [][]float64{{1}, {2}}, [][]float64{{3}})

	var mu sync.Mutex
	var gotObs [][]float64
	var gotLengths []int
	models := NewModelSet().MustAdd("X", ScorerFunc(func(obs [][]float64, lengths []int) (float64, error) {
		mu.Lock()
		defer mu.Unlock()
		gotObs, gotLengths = obs, lengths
		return -1, nil
	}))

	_, err := quiet().Recognize(testContext(t), models, ts)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, gotObs)
	assert.Equal(t, []int{2, 1}, gotLengths)
}

// rankScorer prefers samples whose index matches its own.
func rankScorer(label int) Scorer {
	return ScorerFunc(func(obs [][]float64, _ []int) (float64, error) {
		i := int(obs[0][0])
		if i%5 == label {
			return -1, nil
		}
		if (i+label)%7 == 0 {
			return 0, errBoom
		}
		return -float64(10 + (i*label)%3), nil
	})
}

func TestRecognize_ParallelMatchesSequential(t *testing.T) {
	models := NewModelSet()
	for k, label := range []string{"ZERO", "ONE", "TWO", "THREE", "FOUR"} {
		require.NoError(t, models.Add(label, rankScorer(k)))
	}
	ts := indexedSet{n: 57, failAt: -1}

	seq, err := quiet().Recognize(testContext(t), models, ts)
	require.NoError(t, err)
	par, err := quiet(WithWorkers(8)).Recognize(testContext(t), models, ts)
	require.NoError(t, err)

	assert.Equal(t, seq.Guesses, par.Guesses)
	assert.Equal(t, len(seq.Failures), len(par.Failures))
	for i := range seq.Failures {
		assert.Equal(t, seq.Failures[i].Sample, par.Failures[i].Sample)
		assert.Equal(t, seq.Failures[i].Label, par.Failures[i].Label)
	}
	require.Len(t, par.Probabilities, 57)
	for i := range seq.Probabilities {
		assert.Equal(t, len(seq.Probabilities[i]), len(par.Probabilities[i]))
		for label, v := range seq.Probabilities[i] {
			assert.Equal(t, v, par.Probabilities[i][label], "sample %d label %s", i, label)
		}
	}
	for i, g := range seq.Guesses {
		assert.Equal(t, []string{"ZERO", "ONE", "TWO", "THREE", "FOUR"}[i%5], g)
	}
}

func TestRecognize_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecognizer(WithLogger(logging.New(&buf, "debug")))
	models := NewModelSet().MustAdd("A", failingScorer())

	_, err := r.Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "DEBUG score failed: sample=0 label=A error=boom")
	assert.Contains(t, out, "INFO recognized: samples=1 models=1 failures=1")
}

func TestRecognize_PackageLevel(t *testing.T) {
	models := NewModelSet().MustAdd("A", constScorer(-3))
	res, err := Recognize(testContext(t), models, oneSample())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Guesses)
}

func TestNewRecognizer_Options(t *testing.T) {
	r := NewRecognizer(WithConfig(Config{Workers: 0, LogLevel: "error"}))
	assert.Equal(t, 1, r.Config.Workers)
	assert.Equal(t, "error", r.Config.LogLevel)

	r = NewRecognizer(WithWorkers(6))
	assert.Equal(t, 6, r.Config.Workers)
	assert.Equal(t, "warn", r.Config.LogLevel)
}

func TestScoreTable_Best(t *testing.T) {
	st := ScoreTable{"A": -5, "B": -2, "C": -2, "D": math.Inf(-1)}

	label, score := st.Best([]string{"A", "B", "C", "D"})
	assert.Equal(t, "B", label)
	assert.Equal(t, -2.0, score)

	label, _ = st.Best([]string{"C", "B"})
	assert.Equal(t, "C", label)

	label, score = st.Best([]string{"D", "missing"})
	assert.Equal(t, "", label)
	assert.True(t, math.IsInf(score, -1))
}

func TestScoreError(t *testing.T) {
	err := &ScoreError{Sample: 3, Label: "GO", Err: errBoom}
	assert.Equal(t, `sample 3, model "GO": boom`, err.Error())
	assert.ErrorIs(t, err, errBoom)
}

// testContext mirrors testing.T.Context (Go 1.24+): the returned context is
// canceled just before the test's Cleanup-registered functions run.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
