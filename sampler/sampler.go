// Package sampler selects length-bounded windows of context sentences around a table.
package sampler

import (
	"math/rand"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
)

const (
	// Nearest selects the context on one side of the table, keeping the tokens closest to it
	Nearest = "nearest"
	// ConcatenateAndEnumerate concatenates all context and splits it into consecutive windows
	ConcatenateAndEnumerate = "concatenate_and_enumerate"
	// concateAndEnumerate is an alternative spelling of ConcatenateAndEnumerate found in older configurations
	concateAndEnumerate = "concate_and_enumerate"
)

// ValidateStrategy returns an UnsupportedStrategyError if strategy is not a known sampling strategy
func ValidateStrategy(strategy string) error {
	switch strategy {
	case Nearest, ConcatenateAndEnumerate, concateAndEnumerate:
		return nil
	default:
		return errors.UnsupportedStrategyError{Strategy: strategy}
	}
}

// New creates a ContextSampler for a strategy. rng is used by strategies which pick randomly,
// and must not be shared with other goroutines.
func New(strategy string, maxContextLength int, rng *rand.Rand) (tablegen.ContextSampler, error) {
	switch strategy {
	case Nearest:
		return &nearestSampler{maxContextLength: maxContextLength, rng: rng}, nil
	case ConcatenateAndEnumerate, concateAndEnumerate:
		return &enumeratingSampler{maxContextLength: maxContextLength}, nil
	default:
		return nil, errors.UnsupportedStrategyError{Strategy: strategy}
	}
}

type nearestSampler struct {
	maxContextLength int
	rng              *rand.Rand
}

// Sample picks a side of the table and walks its sentences outwards from the table
func (s *nearestSampler) Sample(example *tablegen.Example) tablegen.WindowIterator {
	before, after := example.ContextBefore, example.ContextAfter
	var window []string
	switch {
	case len(before) == 0 && len(after) == 0:
		// nothing to select
	case len(before) == 0:
		window = s.fromAfter(after)
	case len(after) == 0:
		window = s.fromBefore(before)
	case s.rng.Float64() < 0.5:
		window = s.fromAfter(after)
	default:
		window = s.fromBefore(before)
	}
	if len(window) == 0 {
		return &sliceIterator{}
	}
	return &sliceIterator{windows: [][]string{window}}
}

// fromBefore prepends sentences in reverse order, keeping the suffix closest to the table
func (s *nearestSampler) fromBefore(context [][]string) []string {
	var selected []string
	for i := len(context) - 1; i >= 0; i-- {
		sent := context[i]
		next := make([]string, 0, len(sent)+len(selected))
		next = append(next, sent...)
		selected = append(next, selected...)
		if len(selected) > s.maxContextLength {
			selected = selected[len(selected)-s.maxContextLength:]
			break
		}
	}
	return selected
}

// fromAfter appends sentences in order, keeping the prefix closest to the table
func (s *nearestSampler) fromAfter(context [][]string) []string {
	var selected []string
	for _, sent := range context {
		selected = append(selected, sent...)
		if len(selected) > s.maxContextLength {
			selected = selected[:s.maxContextLength]
			break
		}
	}
	return selected
}

type enumeratingSampler struct {
	maxContextLength int
}

// Sample lazily packs the concatenation of all context sentences into consecutive windows
func (s *enumeratingSampler) Sample(example *tablegen.Example) tablegen.WindowIterator {
	sents := make([][]string, 0, len(example.ContextBefore)+len(example.ContextAfter))
	sents = append(sents, example.ContextBefore...)
	sents = append(sents, example.ContextAfter...)
	it := &enumeratingIterator{sents: sents, maxContextLength: s.maxContextLength}
	it.advance()
	return it
}

// enumeratingIterator holds the next window, if any, in pending
type enumeratingIterator struct {
	sents            [][]string
	pos              int
	maxContextLength int
	pending          []string
}

func (it *enumeratingIterator) advance() {
	it.pending = nil
	var buf []string
	for it.pos < len(it.sents) {
		buf = append(buf, it.sents[it.pos]...)
		it.pos++
		if len(buf) > it.maxContextLength {
			// sentences may be split here; consumers tolerate the partial sentence
			it.pending = buf[:it.maxContextLength]
			return
		}
	}
	if len(buf) > 0 {
		it.pending = buf
	}
}

// HasNextWindow returns true iff there is another window
func (it *enumeratingIterator) HasNextWindow() bool {
	return len(it.pending) > 0
}

// NextWindow returns the next window, or nil if there are none left
func (it *enumeratingIterator) NextWindow() []string {
	window := it.pending
	if window != nil {
		it.advance()
	}
	return window
}

type sliceIterator struct {
	windows [][]string
	next    int
}

func (it *sliceIterator) HasNextWindow() bool {
	return it.next < len(it.windows)
}

func (it *sliceIterator) NextWindow() []string {
	if !it.HasNextWindow() {
		return nil
	}
	it.next++
	return it.windows[it.next-1]
}
