// Package wordrecog selects, for each test sample, the word whose model
// gives the highest log-likelihood.
package wordrecog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/wordrecog/internal/logging"
)

var (
	// ErrNilTestSet is returned when Recognize is called without a test set.
	ErrNilTestSet = errors.New("nil test set")
	// ErrNaNScore marks a model that returned NaN instead of an error.
	ErrNaNScore = errors.New("score is NaN")
	// ErrScorerPanic marks a model whose Score call panicked.
	ErrScorerPanic = errors.New("scorer panicked")
)

// TestSet is the read-only source of test samples. Sample returns the
// observation matrix of sample i and the lengths of the sub-sequences it
// concatenates. With Workers > 1, Sample is called from several goroutines.
type TestSet interface {
	NumSamples() int
	Sample(i int) (obs [][]float64, lengths []int, err error)
}

// ScoreTable maps each model label to its log-likelihood for one sample.
// Labels whose model failed hold math.Inf(-1).
type ScoreTable map[string]float64

// Best returns the label with the strictly greatest score, scanning labels
// in order so the first of equal scores wins. It returns "" and -Inf when
// no label scores above -Inf.
func (st ScoreTable) Best(labels []string) (string, float64) {
	best := math.Inf(-1)
	guess := ""
	for _, label := range labels {
		score, ok := st[label]
		if !ok {
			continue
		}
		if score > best {
			best = score
			guess = label
		}
	}
	return guess, best
}

// ScoreError records a model that could not score a sample.
type ScoreError struct {
	Sample int
	Label  string
	Err    error
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("sample %d, model %q: %v", e.Sample, e.Label, e.Err)
}

func (e *ScoreError) Unwrap() error {
	return e.Err
}

// Result holds the outcome of one Recognize call, indexed by sample.
type Result struct {
	Labels        []string     // model labels in tie-break order
	Probabilities []ScoreTable // full score table per sample
	Guesses       []string     // best label per sample, "" if none scored
	Failures      []*ScoreError
}

// Recognizer scores test samples against a set of word models.
type Recognizer struct {
	Config Config
	log    *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Recognizer) {
		r.Config = cfg
	}
}

// WithWorkers sets how many samples are scored concurrently.
func WithWorkers(n int) Option {
	return func(r *Recognizer) {
		r.Config.Workers = n
	}
}

// WithLogger sets the logger. Without it, records at Config.LogLevel and
// above go to stderr.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recognizer) {
		r.log = log
	}
}

// NewRecognizer creates a Recognizer.
func NewRecognizer(opts ...Option) *Recognizer {
	r := &Recognizer{
		Config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Config.Workers < 1 {
		r.Config.Workers = 1
	}
	if r.log == nil {
		r.log = logging.New(os.Stderr, r.Config.LogLevel)
	}
	return r
}

// Recognize scores every sample of testSet against models with a default
// Recognizer.
func Recognize(ctx context.Context, models *ModelSet, testSet TestSet) (*Result, error) {
	return NewRecognizer().Recognize(ctx, models, testSet)
}

// Recognize scores every sample of testSet against every model and picks
// the best label per sample.
//
// A model that fails on a sample, by error, NaN or panic, scores -Inf for
// that sample only and is listed in Result.Failures. Errors from testSet itself, and context
// cancellation, abort the call. A nil models is treated as empty.
func (r *Recognizer) Recognize(ctx context.Context, models *ModelSet, testSet TestSet) (*Result, error) {
	if testSet == nil {
		return nil, ErrNilTestSet
	}
	n := testSet.NumSamples()
	res := &Result{
		Labels:        models.Labels(),
		Probabilities: make([]ScoreTable, n),
		Guesses:       make([]string, n),
	}
	failures := make([][]*ScoreError, n)

	scoreAt := func(i int) error {
		obs, lengths, err := testSet.Sample(i)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		res.Probabilities[i], res.Guesses[i], failures[i] = r.scoreSample(i, models, obs, lengths)
		return nil
	}

	if r.Config.Workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := scoreAt(i); err != nil {
				return nil, err
			}
		}
	} else {
		// Each goroutine writes only its own index.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Config.Workers)
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				break
			}
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return scoreAt(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for _, f := range failures {
		res.Failures = append(res.Failures, f...)
	}
	r.log.Info("recognized",
		"samples", n,
		"models", models.Len(),
		"failures", len(res.Failures))
	return res, nil
}

// scoreSample scores one sample against every model in order.
func (r *Recognizer) scoreSample(i int, models *ModelSet, obs [][]float64, lengths []int) (ScoreTable, string, []*ScoreError) {
	var entries []modelEntry
	if models != nil {
		entries = models.entries
	}
	table := make(ScoreTable, len(entries))
	best := math.Inf(-1)
	guess := ""
	var failed []*ScoreError

	for _, e := range entries {
		score, err := safeScore(e.scorer, obs, lengths)
		if err != nil {
			failed = append(failed, &ScoreError{Sample: i, Label: e.label, Err: err})
			r.log.Debug("score failed", "sample", i, "label", e.label, "error", err)
			score = math.Inf(-1)
		}
		table[e.label] = score
		if score > best {
			best = score
			guess = e.label
		}
	}
	return table, guess, failed
}

// safeScore calls s.Score and turns a panic or a NaN score into an error,
// so a faulty model only loses its own cell.
func safeScore(s Scorer, obs [][]float64, lengths []int) (score float64, err error) {
	defer func() {
		if v := recover(); v != nil {
			score, err = 0, fmt.Errorf("%w: %v", ErrScorerPanic, v)
		}
	}()
	score, err = s.Score(obs, lengths)
	if err == nil && math.IsNaN(score) {
		err = ErrNaNScore
	}
	return score, err
}
