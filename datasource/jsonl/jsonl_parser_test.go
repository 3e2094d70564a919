package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/stretchr/testify/require"
)

type fieldsTokenizer struct{}

func (fieldsTokenizer) Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

const testCorpus = `{"uuid": "t-1", "header": [{"name": "City Name", "type": "text", "sample_value": {"value": "Paris"}}, {"name": "population", "type": "real", "sample_value": "2.1"}], "context_before": ["The largest cities", ""], "context_after": ["Source census"]}

# a comment
{"uuid": "t-2", "header": [{"name": "year", "type": "real"}], "context_before": [], "context_after": []}
`

func collect(t *testing.T, it *ExampleIterator) []*tablegen.Example {
	var res []*tablegen.Example
	for it.HasNextExample() {
		example, err := it.NextExample()
		require.Nil(t, err)
		res = append(res, example)
	}
	return res
}

func TestJSONLParser(t *testing.T) {
	parser := CreateParser(&ParserConf{Comment: '#'}, fieldsTokenizer{})
	it, err := parser.Parse(strings.NewReader(testCorpus))
	require.Nil(t, err)
	examples := collect(t, it)
	require.Len(t, examples, 2)

	first := examples[0]
	require.Equal(t, "t-1", first.UUID)
	require.Len(t, first.Header, 2)
	require.Equal(t, "Paris", first.Header[0].SampleValue)
	require.Equal(t, []string{"city", "name"}, first.Header[0].NameTokens)
	require.Equal(t, []string{"2.1"}, first.Header[1].SampleTokens)
	// empty sentences are dropped
	require.Equal(t, [][]string{{"the", "largest", "cities"}}, first.ContextBefore)
	require.Equal(t, [][]string{{"source", "census"}}, first.ContextAfter)

	require.Empty(t, examples[1].ContextBefore)
	require.Empty(t, examples[1].Header[0].SampleTokens)
}

func TestJSONLParserInvalidLine(t *testing.T) {
	corpus := "{\"uuid\": \"a\"}\nnot json\n{\"uuid\": \"b\"}\n"
	it, err := CreateParser(&ParserConf{}, fieldsTokenizer{}).Parse(strings.NewReader(corpus))
	require.Nil(t, err)
	require.True(t, it.HasNextExample())
	_, err = it.NextExample()
	require.Nil(t, err)
	_, err = it.NextExample()
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "line 2")

	it, err = CreateParser(&ParserConf{SkipInvalid: true}, fieldsTokenizer{}).Parse(strings.NewReader(corpus))
	require.Nil(t, err)
	require.Len(t, collect(t, it), 2)
}

func TestJSONLParserHeaderLines(t *testing.T) {
	corpus := "ignored header\n{\"uuid\": \"a\"}\n"
	it, err := CreateParser(&ParserConf{HeaderLines: 1}, fieldsTokenizer{}).Parse(strings.NewReader(corpus))
	require.Nil(t, err)
	examples := collect(t, it)
	require.Len(t, examples, 1)
	require.Equal(t, "a", examples[0].UUID)
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.jsonl", "c.txt"} {
		require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	matches, err := Glob(filepath.Join(dir, "*.jsonl"))
	require.Nil(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl")}, matches)
	_, err = Glob(filepath.Join(dir, "*.csv"))
	require.NotNil(t, err)
}
