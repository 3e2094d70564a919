// Package tokenizer maps raw text onto the token ids of a BERT-style WordPiece vocabulary.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Special tokens which every vocabulary must contain
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// MaxVocabSize is the largest vocabulary whose ids fit in the uint16 shard arrays
const MaxVocabSize = 1 << 16

// Vocab is a bidirectional mapping between tokens and ids. Ids are line numbers of the vocab file.
type Vocab struct {
	ids    map[string]int
	tokens []string
}

// LoadVocab reads a vocab file with one token per line
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open vocab: %w", err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab reads a vocab with one token per line
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read vocab: %w", err)
	}
	return NewVocab(tokens)
}

// NewVocab builds a Vocab from tokens in id order
func NewVocab(tokens []string) (*Vocab, error) {
	if len(tokens) > MaxVocabSize {
		return nil, fmt.Errorf("vocab has %d entries, at most %d are supported", len(tokens), MaxVocabSize)
	}
	v := &Vocab{ids: make(map[string]int, len(tokens)), tokens: tokens}
	for i, tok := range tokens {
		if _, exists := v.ids[tok]; !exists {
			v.ids[tok] = i
		}
	}
	for _, special := range []string{PadToken, UnkToken, ClsToken, SepToken, MaskToken} {
		if _, ok := v.ids[special]; !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", special)
		}
	}
	return v, nil
}

// Size returns the number of tokens in the vocab
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// Contains returns true iff token is in the vocab
func (v *Vocab) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// ID returns the id of a token, or the id of UnkToken if it is unknown
func (v *Vocab) ID(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.ids[UnkToken]
}

// IDs converts tokens to ids
func (v *Vocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = v.ID(tok)
	}
	return ids
}

// Token returns the token for an id
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnkToken
	}
	return v.tokens[id]
}
