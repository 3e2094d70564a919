// Package builder implements a vanilla masked-LM InstanceBuilder, which linearizes a table after
// its context as "[CLS] context [SEP] col1 | type | value [SEP] col2 | ..." and masks a fraction
// of the non-special tokens.
package builder

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/tokenizer"
)

// cellDelimiter separates the name, type and sample value of a column
const cellDelimiter = "|"

// Options configures a Builder
type Options struct {
	MaxSequenceLength    int     // total length of an Instance, including special tokens
	MaxContextLength     int     // upper bound on context tokens in segment A
	MaskedLMProbability  float64 // fraction of maskable tokens to predict
	MaxPredictionsPerSeq int     // upper bound on the number of masked positions per Instance
	UseColumnTypes       bool    // include each column's type in the linearization
	UseSampleValues      bool    // include each column's sample value in the linearization
}

func ensureDefaultOptionsValues(opts *Options) {
	if opts.MaxSequenceLength == 0 {
		opts.MaxSequenceLength = 512
	}
	if opts.MaxContextLength == 0 {
		opts.MaxContextLength = 256
	}
	if opts.MaskedLMProbability == 0 {
		opts.MaskedLMProbability = 0.15
	}
	if opts.MaxPredictionsPerSeq == 0 {
		opts.MaxPredictionsPerSeq = 200
	}
}

// Builder creates masked-LM Instances from Examples. A Builder is not safe for concurrent use.
type Builder struct {
	opts  Options
	vocab *tokenizer.Vocab
	rng   *rand.Rand
}

// New creates a Builder
func New(opts Options, vocab *tokenizer.Vocab, rng *rand.Rand) (*Builder, error) {
	ensureDefaultOptionsValues(&opts)
	if opts.MaxSequenceLength > tokenizer.MaxVocabSize {
		return nil, fmt.Errorf("MaxSequenceLength %d does not fit in uint16 positions", opts.MaxSequenceLength)
	}
	if opts.MaxContextLength+3 > opts.MaxSequenceLength {
		return nil, fmt.Errorf("MaxContextLength %d leaves no room for a table within MaxSequenceLength %d", opts.MaxContextLength, opts.MaxSequenceLength)
	}
	if opts.MaskedLMProbability < 0 || opts.MaskedLMProbability > 1 {
		return nil, fmt.Errorf("MaskedLMProbability %f must be between 0 and 1", opts.MaskedLMProbability)
	}
	return &Builder{opts: opts, vocab: vocab, rng: rng}, nil
}

// Build creates one Instance per context window produced by sampler
func (b *Builder) Build(example *tablegen.Example, sampler tablegen.ContextSampler) ([]*tablegen.Instance, error) {
	if len(example.Header) == 0 {
		return nil, fmt.Errorf("table %s has no columns", example.UUID)
	}
	var instances []*tablegen.Instance
	for it := sampler.Sample(example); it.HasNextWindow(); {
		instances = append(instances, b.buildInstance(example, it.NextWindow()))
	}
	return instances, nil
}

// Strip implements tablegen.InstanceBuilder
func (b *Builder) Strip(inst *tablegen.Instance) {
	inst.Strip()
}

func (b *Builder) buildInstance(example *tablegen.Example, context []string) *tablegen.Instance {
	if len(context) > b.opts.MaxContextLength {
		context = context[:b.opts.MaxContextLength]
	}
	tokens := make([]string, 0, b.opts.MaxSequenceLength)
	tokens = append(tokens, tokenizer.ClsToken)
	tokens = append(tokens, context...)
	tokens = append(tokens, tokenizer.SepToken)
	segmentALength := len(tokens)

	for i, col := range example.Header {
		if i > 0 {
			tokens = append(tokens, tokenizer.SepToken)
		}
		tokens = append(tokens, b.linearizeColumn(col)...)
		if len(tokens) >= b.opts.MaxSequenceLength {
			break
		}
	}
	if len(tokens) >= b.opts.MaxSequenceLength {
		tokens = tokens[:b.opts.MaxSequenceLength-1]
	}
	tokens = append(tokens, tokenizer.SepToken)

	tokenIDs := b.vocab.IDs(tokens)
	positions := b.maskablePositions(tokens)
	labelIDs := make([]int, len(positions))
	labels := make([]string, len(positions))
	for i, pos := range positions {
		labelIDs[i] = tokenIDs[pos]
		labels[i] = tokens[pos]
		switch p := b.rng.Float64(); {
		case p < 0.8:
			tokenIDs[pos] = b.vocab.ID(tokenizer.MaskToken)
		case p < 0.9:
			// keep the original token
		default:
			tokenIDs[pos] = b.rng.Intn(b.vocab.Size())
		}
	}

	return &tablegen.Instance{
		TokenIDs:          tokenIDs,
		SegmentALength:    segmentALength,
		MaskedLMPositions: positions,
		MaskedLMLabelIDs:  labelIDs,
		Tokens:            tokens,
		MaskedLMLabels:    labels,
		Info: &tablegen.InstanceInfo{
			TableUUID:     example.UUID,
			NumColumns:    len(example.Header),
			ContextLength: len(context),
		},
	}
}

func (b *Builder) linearizeColumn(col tablegen.Column) []string {
	var tokens []string
	tokens = append(tokens, col.NameTokens...)
	if b.opts.UseColumnTypes && col.Type != "" {
		tokens = append(tokens, cellDelimiter, col.Type)
	}
	if b.opts.UseSampleValues && len(col.SampleTokens) > 0 {
		tokens = append(tokens, cellDelimiter)
		tokens = append(tokens, col.SampleTokens...)
	}
	return tokens
}

// maskablePositions picks a sorted random subset of the non-special positions
func (b *Builder) maskablePositions(tokens []string) []int {
	var candidates []int
	for i, tok := range tokens {
		if tok == tokenizer.ClsToken || tok == tokenizer.SepToken {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return []int{}
	}
	n := int(math.Round(float64(len(candidates)) * b.opts.MaskedLMProbability))
	if n < 1 {
		n = 1
	}
	if n > b.opts.MaxPredictionsPerSeq {
		n = b.opts.MaxPredictionsPerSeq
	}
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	positions := candidates[:n]
	sort.Ints(positions)
	return positions
}

// NewFactory returns a tablegen.InstanceBuilderFactory creating Builders whose random source is
// derived from seed and the worker ordinal
func NewFactory(opts Options, vocab *tokenizer.Vocab, seed int64) tablegen.InstanceBuilderFactory {
	return func(workerOrdinal int) (tablegen.InstanceBuilder, error) {
		return New(opts, vocab, rand.New(rand.NewSource(seed+int64(workerOrdinal))))
	}
}
