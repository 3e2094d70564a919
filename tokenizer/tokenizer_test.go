package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func createTestVocab(t *testing.T) *Vocab {
	vocab, err := ReadVocab(strings.NewReader(strings.Join([]string{
		PadToken, UnkToken, ClsToken, SepToken, MaskToken,
		"the", "table", "un", "##want", "##ed", "runs", ",", "cafe",
	}, "\n")))
	require.Nil(t, err)
	return vocab
}

func TestReadVocab(t *testing.T) {
	vocab := createTestVocab(t)
	require.Equal(t, 13, vocab.Size())
	require.Equal(t, 5, vocab.ID("the"))
	require.Equal(t, 1, vocab.ID("missing"))
	require.Equal(t, "table", vocab.Token(6))
	require.Equal(t, UnkToken, vocab.Token(1000))
}

func TestVocabRequiresSpecialTokens(t *testing.T) {
	_, err := NewVocab([]string{"the", "table"})
	require.NotNil(t, err)
}

func TestTokenize(t *testing.T) {
	tok, err := New(createTestVocab(t), true, 16)
	require.Nil(t, err)
	require.Equal(t, []string{"un", "##want", "##ed", ",", "runs"}, tok.Tokenize("UNwanted,runs"))
	require.Equal(t, []string{"the", "cafe", UnkToken}, tok.Tokenize("The  Café xyz"))
	// cached path gives the same answer
	require.Equal(t, []string{"un", "##want", "##ed"}, tok.Tokenize("unwanted"))
}

func TestTokenizeCaseSensitive(t *testing.T) {
	tok, err := New(createTestVocab(t), false, 0)
	require.Nil(t, err)
	require.Equal(t, []string{UnkToken, "table"}, tok.Tokenize("The table"))
}
