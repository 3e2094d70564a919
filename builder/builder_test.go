package builder

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/sampler"
	"github.com/go-sif/tablegen/tokenizer"
	"github.com/stretchr/testify/require"
)

func createTestVocab(t *testing.T) *tokenizer.Vocab {
	vocab, err := tokenizer.NewVocab([]string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken, tokenizer.MaskToken,
		"the", "city", "population", "name", "|", "text", "real", "paris", "is", "large",
	})
	require.Nil(t, err)
	return vocab
}

func createTestExample() *tablegen.Example {
	return &tablegen.Example{
		UUID: "t-1",
		Header: []tablegen.Column{
			{Name: "name", Type: "text", NameTokens: []string{"name"}, SampleTokens: []string{"paris"}},
			{Name: "population", Type: "real", NameTokens: []string{"population"}},
		},
		ContextBefore: [][]string{{"the", "city"}, {"paris", "is"}},
		ContextAfter:  [][]string{{"large", "city"}},
	}
}

func build(t *testing.T, opts Options, strategy string, example *tablegen.Example) []*tablegen.Instance {
	vocab := createTestVocab(t)
	b, err := New(opts, vocab, rand.New(rand.NewSource(7)))
	require.Nil(t, err)
	s, err := sampler.New(strategy, b.opts.MaxContextLength, rand.New(rand.NewSource(7)))
	require.Nil(t, err)
	instances, err := b.Build(example, s)
	require.Nil(t, err)
	return instances
}

func TestBuildLinearization(t *testing.T) {
	instances := build(t, Options{
		MaxSequenceLength:   32,
		MaxContextLength:    3,
		UseColumnTypes:      true,
		UseSampleValues:     true,
		MaskedLMProbability: 0.2,
	}, sampler.ConcatenateAndEnumerate, createTestExample())
	// [the city paris] then [large city], "is" is lost at the truncation boundary
	require.Len(t, instances, 2)

	inst := instances[0]
	require.Equal(t, []string{
		"[CLS]", "the", "city", "paris", "[SEP]",
		"name", "|", "text", "|", "paris", "[SEP]",
		"population", "|", "real", "[SEP]",
	}, inst.Tokens)
	require.Equal(t, 5, inst.SegmentALength)
	require.Equal(t, "t-1", inst.Info.TableUUID)
	require.Equal(t, 2, inst.Info.NumColumns)
	require.Equal(t, 3, inst.Info.ContextLength)
	require.Equal(t, 4, instances[1].SegmentALength)
}

func TestBuildMasking(t *testing.T) {
	vocab := createTestVocab(t)
	instances := build(t, Options{MaxSequenceLength: 32, MaxContextLength: 8, MaskedLMProbability: 0.5}, sampler.Nearest, createTestExample())
	require.Len(t, instances, 1)
	for _, inst := range instances {
		require.Len(t, inst.TokenIDs, len(inst.Tokens))
		require.NotEmpty(t, inst.MaskedLMPositions)
		require.Len(t, inst.MaskedLMLabelIDs, len(inst.MaskedLMPositions))
		require.True(t, sort.IntsAreSorted(inst.MaskedLMPositions))
		for i, pos := range inst.MaskedLMPositions {
			tok := inst.Tokens[pos]
			require.NotEqual(t, tokenizer.ClsToken, tok)
			require.NotEqual(t, tokenizer.SepToken, tok)
			require.Equal(t, vocab.ID(tok), inst.MaskedLMLabelIDs[i])
			require.Equal(t, tok, inst.MaskedLMLabels[i])
		}
		// unmasked positions keep their original ids
		masked := make(map[int]bool)
		for _, pos := range inst.MaskedLMPositions {
			masked[pos] = true
		}
		for pos, tok := range inst.Tokens {
			if !masked[pos] {
				require.Equal(t, vocab.ID(tok), inst.TokenIDs[pos])
			}
		}
	}
}

func TestBuildTruncatesToMaxSequenceLength(t *testing.T) {
	example := createTestExample()
	for i := 0; i < 20; i++ {
		example.Header = append(example.Header, tablegen.Column{Name: "name", NameTokens: []string{"name", "city"}})
	}
	instances := build(t, Options{MaxSequenceLength: 16, MaxContextLength: 4}, sampler.Nearest, example)
	require.Len(t, instances, 1)
	require.Len(t, instances[0].TokenIDs, 16)
	require.Equal(t, tokenizer.SepToken, instances[0].Tokens[15])
}

func TestBuildWithoutContext(t *testing.T) {
	example := createTestExample()
	example.ContextBefore = nil
	example.ContextAfter = nil
	require.Empty(t, build(t, Options{}, sampler.Nearest, example))
	require.Empty(t, build(t, Options{}, sampler.ConcatenateAndEnumerate, example))
}

func TestBuildRejectsEmptyHeader(t *testing.T) {
	vocab := createTestVocab(t)
	b, err := New(Options{}, vocab, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	s, err := sampler.New(sampler.Nearest, 256, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	_, err = b.Build(&tablegen.Example{UUID: "empty"}, s)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestNewValidatesOptions(t *testing.T) {
	vocab := createTestVocab(t)
	_, err := New(Options{MaxSequenceLength: 10, MaxContextLength: 9}, vocab, rand.New(rand.NewSource(1)))
	require.NotNil(t, err)
	_, err = New(Options{MaskedLMProbability: 1.5}, vocab, rand.New(rand.NewSource(1)))
	require.NotNil(t, err)
}

func TestFactoryStripsDebugFields(t *testing.T) {
	factory := NewFactory(Options{MaxSequenceLength: 32, MaxContextLength: 8}, createTestVocab(t), 42)
	b, err := factory(3)
	require.Nil(t, err)
	s, err := sampler.New(sampler.Nearest, 8, rand.New(rand.NewSource(1)))
	require.Nil(t, err)
	instances, err := b.Build(createTestExample(), s)
	require.Nil(t, err)
	require.Len(t, instances, 1)
	b.Strip(instances[0])
	require.Nil(t, instances[0].Tokens)
	require.Nil(t, instances[0].Info)
	require.NotEmpty(t, instances[0].TokenIDs)
}
