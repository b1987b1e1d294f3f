// Package dataset holds isolated-word test samples in the form the
// recognizer scores: one concatenated observation matrix per sample plus
// the lengths of the sequences it was built from.
package dataset

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a sample index is outside the set.
var ErrIndexOutOfRange = errors.New("sample index out of range")

type sample struct {
	word      string
	sequences [][][]float64
	obs       [][]float64
	lengths   []int
}

// Singles is an ordered collection of single-word samples. The position of
// a sample is its id; the word is the ground-truth label used for scoring
// reports. Singles is safe for concurrent reads once built.
type Singles struct {
	samples []sample
}

// NewSingles returns an empty set.
func NewSingles() *Singles {
	return &Singles{}
}

// Add appends one sample of word made of the given sequences and returns its id.
// Each sequence is a list of feature vectors; empty sequences are dropped.
func (s *Singles) Add(word string, sequences ...[][]float64) int {
	smp := sample{word: word}
	for _, seq := range sequences {
		if len(seq) == 0 {
			continue
		}
		smp.sequences = append(smp.sequences, seq)
		smp.obs = append(smp.obs, seq...)
		smp.lengths = append(smp.lengths, len(seq))
	}
	s.samples = append(s.samples, smp)
	return len(s.samples) - 1
}

// NumSamples returns the number of samples.
func (s *Singles) NumSamples() int {
	return len(s.samples)
}

func (s *Singles) at(i int) (*sample, error) {
	if i < 0 || i >= len(s.samples) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(s.samples))
	}
	return &s.samples[i], nil
}

// Sample returns the concatenated observation matrix of sample i and the
// length of each sequence in it.
func (s *Singles) Sample(i int) ([][]float64, []int, error) {
	smp, err := s.at(i)
	if err != nil {
		return nil, nil, err
	}
	return smp.obs, smp.lengths, nil
}

// Sequences returns the separate sequences of sample i.
func (s *Singles) Sequences(i int) ([][][]float64, error) {
	smp, err := s.at(i)
	if err != nil {
		return nil, err
	}
	return smp.sequences, nil
}

// Word returns the ground-truth label of sample i.
func (s *Singles) Word(i int) (string, error) {
	smp, err := s.at(i)
	if err != nil {
		return "", err
	}
	return smp.word, nil
}

// Words returns every ground-truth label in sample order.
func (s *Singles) Words() []string {
	words := make([]string, len(s.samples))
	for i := range s.samples {
		words[i] = s.samples[i].word
	}
	return words
}
