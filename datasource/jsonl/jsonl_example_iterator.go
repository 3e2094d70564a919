package jsonl

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/go-sif/tablegen"
)

// ExampleIterator produces Examples from the lines of a JSONL stream. It is not safe for concurrent use.
type ExampleIterator struct {
	parser  *Parser
	scanner *bufio.Scanner
	line    int
	next    *tablegen.Example
	err     error
	done    bool
}

// HasNextExample returns true iff this iterator can produce another Example, or an error
func (it *ExampleIterator) HasNextExample() bool {
	if it.next == nil && it.err == nil && !it.done {
		it.advance()
	}
	return it.next != nil || it.err != nil
}

// NextExample returns the next Example if one is available, or an error
func (it *ExampleIterator) NextExample() (*tablegen.Example, error) {
	if !it.HasNextExample() {
		return nil, fmt.Errorf("no more examples")
	}
	example, err := it.next, it.err
	it.next, it.err = nil, nil
	return example, err
}

func (it *ExampleIterator) advance() {
	for it.scanner.Scan() {
		it.line++
		text := strings.TrimSpace(it.scanner.Text())
		if len(text) == 0 {
			continue
		}
		if it.parser.conf.Comment != 0 && strings.HasPrefix(text, string(it.parser.conf.Comment)) {
			continue
		}
		example, err := it.parser.ParseExample(text)
		if err != nil {
			if it.parser.conf.SkipInvalid {
				continue
			}
			it.err = fmt.Errorf("unable to parse line %d: %w", it.line, err)
			return
		}
		it.next = example
		return
	}
	it.done = true
	if err := it.scanner.Err(); err != nil {
		it.err = err
	}
}
