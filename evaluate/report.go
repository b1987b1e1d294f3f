// Package evaluate compares recognizer guesses against ground-truth labels.
package evaluate

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrLengthMismatch is returned when guesses and truth differ in length.
var ErrLengthMismatch = errors.New("guess and truth counts differ")

// Mismatch is one sample whose guess differs from its label.
type Mismatch struct {
	Index int
	Want  string
	Got   string // "" when no model scored the sample
}

// Report summarizes word-level recognition accuracy.
type Report struct {
	Total      int
	Errors     int
	NoGuess    int // samples for which every model failed
	WER        float64
	Accuracy   float64
	Mismatches []Mismatch
}

// Evaluate compares guesses[i] with truth[i] for every sample.
func Evaluate(guesses, truth []string) (*Report, error) {
	if len(guesses) != len(truth) {
		return nil, fmt.Errorf("%w: %d guesses, %d labels", ErrLengthMismatch, len(guesses), len(truth))
	}
	r := &Report{Total: len(truth)}
	for i, want := range truth {
		got := guesses[i]
		if got == "" {
			r.NoGuess++
		}
		if got != want {
			r.Errors++
			r.Mismatches = append(r.Mismatches, Mismatch{Index: i, Want: want, Got: got})
		}
	}
	if r.Total > 0 {
		r.WER = float64(r.Errors) / float64(r.Total)
		r.Accuracy = 1 - r.WER
	}
	return r, nil
}

// WriteTo prints the WER, the correct count and one line per mismatch.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**** WER = %.3f\n", r.WER)
	fmt.Fprintf(&b, "Total correct: %d out of %d\n", r.Total-r.Errors, r.Total)
	if len(r.Mismatches) > 0 {
		fmt.Fprintf(&b, "%6s  %-20s %s\n", "Sample", "Recognized", "Correct")
		for _, m := range r.Mismatches {
			got := m.Got
			if got == "" {
				got = "<none>"
			}
			fmt.Fprintf(&b, "%6d: %-20s %s\n", m.Index, "*"+got, m.Want)
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// SentenceScore is the edit distance between a recognized sentence and its reference.
type SentenceScore struct {
	ID       int
	Want     []string
	Got      []string
	Distance int
}

// EvaluateSentences groups per-sample guesses into sentences, where
// sentences[k] lists the sample indices of sentence k in word order, and
// returns per-sentence scores plus the overall WER: total edit distance
// over total reference words.
func EvaluateSentences(guesses, truth []string, sentences [][]int) ([]SentenceScore, float64, error) {
	if len(guesses) != len(truth) {
		return nil, 0, fmt.Errorf("%w: %d guesses, %d labels", ErrLengthMismatch, len(guesses), len(truth))
	}
	scores := make([]SentenceScore, 0, len(sentences))
	words, dist := 0, 0
	for k, ids := range sentences {
		s := SentenceScore{ID: k, Want: make([]string, len(ids)), Got: make([]string, len(ids))}
		for j, id := range ids {
			if id < 0 || id >= len(truth) {
				return nil, 0, fmt.Errorf("sentence %d: sample %d out of range", k, id)
			}
			s.Want[j] = truth[id]
			s.Got[j] = guesses[id]
		}
		s.Distance = EditDistance(s.Got, s.Want)
		words += len(ids)
		dist += s.Distance
		scores = append(scores, s)
	}
	wer := 0.0
	if words > 0 {
		wer = float64(dist) / float64(words)
	}
	return scores, wer, nil
}
