package sampler

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/stretchr/testify/require"
)

func sents(s ...string) [][]string {
	res := make([][]string, len(s))
	for i := range s {
		res[i] = strings.Fields(s[i])
	}
	return res
}

func collect(it tablegen.WindowIterator) [][]string {
	var res [][]string
	for it.HasNextWindow() {
		res = append(res, it.NextWindow())
	}
	return res
}

func TestUnsupportedStrategy(t *testing.T) {
	_, err := New("random_chunk", 10, rand.New(rand.NewSource(1)))
	require.NotNil(t, err)
	require.IsType(t, errors.UnsupportedStrategyError{}, err)
	require.NotNil(t, ValidateStrategy("random_chunk"))
	require.Nil(t, ValidateStrategy(Nearest))
	require.Nil(t, ValidateStrategy("concate_and_enumerate"))
}

func TestNearestBeforeKeepsSuffix(t *testing.T) {
	s, err := New(Nearest, 5, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	ex := &tablegen.Example{ContextBefore: sents("a b c", "d e", "f g h")}
	windows := collect(s.Sample(ex))
	require.Len(t, windows, 1)
	require.Equal(t, []string{"d", "e", "f", "g", "h"}, windows[0])

	// truncation inside a sentence keeps the tokens nearest the table
	s, err = New(Nearest, 4, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	windows = collect(s.Sample(ex))
	require.Len(t, windows, 1)
	require.Equal(t, []string{"e", "f", "g", "h"}, windows[0])
}

func TestNearestBeforeShorterThanBound(t *testing.T) {
	s, err := New(Nearest, 100, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	ex := &tablegen.Example{ContextBefore: sents("a b", "c")}
	windows := collect(s.Sample(ex))
	require.Equal(t, [][]string{{"a", "b", "c"}}, windows)
}

func TestNearestAfterKeepsPrefix(t *testing.T) {
	s, err := New(Nearest, 4, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	ex := &tablegen.Example{ContextAfter: sents("a b c", "d e", "f g h")}
	windows := collect(s.Sample(ex))
	require.Equal(t, [][]string{{"a", "b", "c", "d"}}, windows)
}

func TestNearestEmpty(t *testing.T) {
	s, err := New(Nearest, 4, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	it := s.Sample(&tablegen.Example{})
	require.False(t, it.HasNextWindow())
	require.Nil(t, it.NextWindow())
}

func TestNearestPicksBothSides(t *testing.T) {
	s, err := New(Nearest, 10, rand.New(rand.NewSource(7)))
	require.Nil(t, err)
	ex := &tablegen.Example{ContextBefore: sents("before"), ContextAfter: sents("after")}
	seen := make(map[string]int)
	for i := 0; i < 200; i++ {
		windows := collect(s.Sample(ex))
		require.Len(t, windows, 1)
		seen[windows[0][0]]++
	}
	require.Len(t, seen, 2)
	require.True(t, seen["before"] > 50)
	require.True(t, seen["after"] > 50)
}

func TestConcatenateAndEnumerate(t *testing.T) {
	s, err := New(ConcatenateAndEnumerate, 4, nil)
	require.Nil(t, err)
	ex := &tablegen.Example{
		ContextBefore: sents("a b", "c d e"),
		ContextAfter:  sents("f", "g h", "i j k l m", "n"),
	}
	windows := collect(s.Sample(ex))
	require.Equal(t, [][]string{
		{"a", "b", "c", "d"}, // "e" is lost at the truncation boundary
		{"f", "g", "h", "i"},
		{"n"},
	}, windows)
	for _, w := range windows {
		require.True(t, len(w) <= 4)
		require.NotEmpty(t, w)
	}
}

func TestConcatenateAndEnumerateReproducesShortContext(t *testing.T) {
	s, err := New(ConcatenateAndEnumerate, 100, nil)
	require.Nil(t, err)
	ex := &tablegen.Example{ContextBefore: sents("a b"), ContextAfter: sents("c", "d e")}
	windows := collect(s.Sample(ex))
	require.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, windows)
}

func TestConcatenateAndEnumerateEmpty(t *testing.T) {
	s, err := New(ConcatenateAndEnumerate, 4, nil)
	require.Nil(t, err)
	require.Empty(t, collect(s.Sample(&tablegen.Example{})))
}
