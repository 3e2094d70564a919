package tokenizer

import (
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/text/unicode/norm"
)

const maxCharsPerWord = 100

// Tokenizer splits text into WordPiece tokens of a Vocab. It is safe for concurrent use.
type Tokenizer struct {
	vocab     *Vocab
	lowerCase bool
	cache     *lru.Cache
}

// New creates a Tokenizer. cacheSize bounds the number of words whose WordPiece split is cached.
func New(vocab *Vocab, lowerCase bool, cacheSize int) (*Tokenizer, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{vocab: vocab, lowerCase: lowerCase, cache: cache}, nil
}

// Vocab returns the vocabulary of this Tokenizer
func (t *Tokenizer) Vocab() *Vocab {
	return t.vocab
}

// Tokenize splits text into WordPiece tokens
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, word := range t.basicTokenize(text) {
		tokens = append(tokens, t.wordPieces(word)...)
	}
	return tokens
}

// basicTokenize normalizes text and splits it on whitespace and punctuation
func (t *Tokenizer) basicTokenize(text string) []string {
	if t.lowerCase {
		text = stripAccents(strings.ToLower(text))
	}
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// wordPieces splits a word with greedy longest-match-first lookup
func (t *Tokenizer) wordPieces(word string) []string {
	if cached, ok := t.cache.Get(word); ok {
		return cached.([]string)
	}
	pieces := t.splitWord(word)
	t.cache.Add(word, pieces)
	return pieces
}

func (t *Tokenizer) splitWord(word string) []string {
	chars := []rune(word)
	if len(chars) > maxCharsPerWord {
		return []string{UnkToken}
	}
	var pieces []string
	for start := 0; start < len(chars); {
		end := len(chars)
		found := ""
		for ; start < end; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if t.vocab.Contains(sub) {
				found = sub
				break
			}
		}
		if found == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}
