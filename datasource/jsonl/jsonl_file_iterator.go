package jsonl

import (
	"fmt"

	"github.com/go-sif/tablegen"
	"github.com/spf13/afero"
)

// FileIterator produces the Examples of a single JSONL file. The file is opened when the first
// Example is requested and closed once the file is exhausted, so that one descriptor is held at
// a time while a corpus is drained file by file. It is not safe for concurrent use.
type FileIterator struct {
	parser *Parser
	fs     afero.Fs
	path   string
	file   afero.File
	it     *ExampleIterator
	err    error
	closed bool
}

// ParseFile returns an iterator over the Examples in the file at path
func (p *Parser) ParseFile(fs afero.Fs, path string) *FileIterator {
	return &FileIterator{parser: p, fs: fs, path: path}
}

// HasNextExample returns true iff this iterator can produce another Example, or an error
func (it *FileIterator) HasNextExample() bool {
	if it.err != nil {
		return true
	}
	if it.closed {
		return false
	}
	if it.it == nil {
		if err := it.open(); err != nil {
			it.err = fmt.Errorf("unable to read %s: %w", it.path, err)
			it.Close()
			return true
		}
	}
	if it.it.HasNextExample() {
		return true
	}
	if err := it.Close(); err != nil {
		it.err = err
	}
	return it.err != nil
}

// NextExample returns the next Example if one is available, or an error
func (it *FileIterator) NextExample() (*tablegen.Example, error) {
	if !it.HasNextExample() {
		return nil, fmt.Errorf("no more examples")
	}
	if it.err != nil {
		err := it.err
		it.err = nil
		return nil, err
	}
	example, err := it.it.NextExample()
	if err != nil {
		it.Close()
		return nil, fmt.Errorf("%s: %w", it.path, err)
	}
	return example, nil
}

// Close releases the file, if it is open. Once closed, the iterator produces no more Examples.
func (it *FileIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.file == nil {
		return nil
	}
	return it.file.Close()
}

func (it *FileIterator) open() error {
	f, err := it.fs.Open(it.path)
	if err != nil {
		return err
	}
	it.file = f
	it.it, err = it.parser.Parse(f)
	return err
}
