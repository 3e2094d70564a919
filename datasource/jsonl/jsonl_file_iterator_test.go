package jsonl

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// countingFs tracks how many of its files are open
type countingFs struct {
	afero.Fs
	open    int
	maxOpen int
}

type countingFile struct {
	afero.File
	fs *countingFs
}

func (fs *countingFs) Open(name string) (afero.File, error) {
	f, err := fs.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	fs.open++
	if fs.open > fs.maxOpen {
		fs.maxOpen = fs.open
	}
	return &countingFile{File: f, fs: fs}, nil
}

func (f *countingFile) Close() error {
	f.fs.open--
	return f.File.Close()
}

func TestFileIteratorClosesDrainedFiles(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	paths := []string{"/corpus/a.jsonl", "/corpus/b.jsonl", "/corpus/c.jsonl"}
	for _, path := range paths {
		require.Nil(t, afero.WriteFile(fs, path, []byte("{\"uuid\": \"x\"}\n{\"uuid\": \"y\"}\n"), 0644))
	}
	parser := CreateParser(&ParserConf{}, fieldsTokenizer{})
	var iterators []*FileIterator
	for _, path := range paths {
		iterators = append(iterators, parser.ParseFile(fs, path))
	}
	// nothing is opened before it is read
	require.Equal(t, 0, fs.open)

	n := 0
	for _, it := range iterators {
		for it.HasNextExample() {
			_, err := it.NextExample()
			require.Nil(t, err)
			n++
		}
		require.Equal(t, 0, fs.open)
	}
	require.Equal(t, 6, n)
	require.Equal(t, 1, fs.maxOpen)
}

func TestFileIteratorErrors(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	parser := CreateParser(&ParserConf{}, fieldsTokenizer{})

	it := parser.ParseFile(fs, "/missing.jsonl")
	require.True(t, it.HasNextExample())
	_, err := it.NextExample()
	require.Error(t, err)
	require.Contains(t, err.Error(), "/missing.jsonl")
	require.False(t, it.HasNextExample())

	require.Nil(t, afero.WriteFile(fs, "/bad.jsonl", []byte("{\"uuid\": \"a\"}\nnot json\n"), 0644))
	it = parser.ParseFile(fs, "/bad.jsonl")
	_, err = it.NextExample()
	require.Nil(t, err)
	require.Equal(t, 1, fs.open)
	_, err = it.NextExample()
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
	require.Equal(t, 0, fs.open)
	require.False(t, it.HasNextExample())

	// closing an iterator mid-file releases it
	require.Nil(t, afero.WriteFile(fs, "/good.jsonl", []byte("{\"uuid\": \"a\"}\n{\"uuid\": \"b\"}\n"), 0644))
	it = parser.ParseFile(fs, "/good.jsonl")
	require.True(t, it.HasNextExample())
	require.Nil(t, it.Close())
	require.Equal(t, 0, fs.open)
	require.False(t, it.HasNextExample())
	require.Nil(t, it.Close())
}
