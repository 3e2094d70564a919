// Package memory provides a TableStore which keeps every Example in memory, for tests and small runs
package memory

import (
	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
)

// Store is a TableStore backed by a slice of Examples
type Store struct {
	examples []*tablegen.Example
}

// CreateStore is a factory for Stores. The Store takes ownership of examples.
func CreateStore(examples []*tablegen.Example) *Store {
	return &Store{examples: examples}
}

// Len returns the number of Examples in the Store
func (s *Store) Len() int {
	return len(s.examples)
}

// Open returns a new client for this Store
func (s *Store) Open() (tablegen.StoreClient, error) {
	return &client{source: s}, nil
}

type client struct {
	source *Store
	closed bool
}

func (c *client) Get(index int) (*tablegen.Example, error) {
	if c.closed || index < 0 || index >= len(c.source.examples) {
		return nil, errors.MissingExampleError{Index: index}
	}
	return c.source.examples[index], nil
}

func (c *client) Close() error {
	c.closed = true
	return nil
}
