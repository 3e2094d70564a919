// Package leveldb provides an on-disk TableStore. The database is built once by Ingest, after
// which any number of processes may open read-only clients against it concurrently.
package leveldb

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"
)

const (
	ingestBatchSize = 1000
	logEvery        = 100000
)

// lenKey holds the number of examples. It cannot collide with the 8 byte example keys.
var lenKey = []byte("num_examples")

// ExampleSource produces the Examples to ingest, in index order
type ExampleSource interface {
	HasNextExample() bool
	NextExample() (*tablegen.Example, error)
}

// Store is a TableStore backed by a LevelDB database on disk
type Store struct {
	path string
	n    int
}

var _ tablegen.LocatableTableStore = &Store{}

// Ingest creates a fresh database at path containing every Example from sources, indexed in
// the order they are produced. Any existing database at path is replaced.
func Ingest(path string, logger *zap.Logger, sources ...ExampleSource) (*Store, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("unable to clear %s: %w", path, err)
	}
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfExist: true})
	if err != nil {
		return nil, fmt.Errorf("unable to create table database: %w", err)
	}
	n := 0
	batch := new(leveldb.Batch)
	var buf []byte
	for _, source := range sources {
		for source.HasNextExample() {
			example, err := source.NextExample()
			if err != nil {
				db.Close()
				return nil, err
			}
			buf, err = example.MarshalMsg(buf[:0])
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("unable to encode example %s: %w", example.UUID, err)
			}
			// Batch.Put copies its arguments
			batch.Put(indexKey(n), buf)
			n++
			if batch.Len() >= ingestBatchSize {
				if err := db.Write(batch, nil); err != nil {
					db.Close()
					return nil, err
				}
				batch.Reset()
			}
			if n%logEvery == 0 {
				logger.Info("ingesting examples", zap.String("count", humanize.Comma(int64(n))))
			}
		}
	}
	batch.Put(lenKey, []byte(strconv.Itoa(n)))
	if err := db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}
	logger.Info("table database ready", zap.String("path", path), zap.String("examples", humanize.Comma(int64(n))))
	return &Store{path: path, n: n}, nil
}

// OpenStore describes an existing database created by Ingest
func OpenStore(path string) (*Store, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	val, err := db.Get(lenKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%s is not a table database: %w", path, err)
	}
	n, err := strconv.Atoi(string(val))
	if err != nil {
		return nil, fmt.Errorf("%s has a corrupt length: %w", path, err)
	}
	return &Store{path: path, n: n}, nil
}

// Len returns the number of Examples in the Store
func (s *Store) Len() int {
	return s.n
}

// Path returns the location of the database on disk
func (s *Store) Path() string {
	return s.path
}

// Open returns a new read-only client. Clients hold a shared lock on the database.
func (s *Store) Open() (tablegen.StoreClient, error) {
	db, err := openReadOnly(s.path)
	if err != nil {
		return nil, err
	}
	return &client{db: db}, nil
}

// Remove deletes the database from disk. Every client must be closed first.
func (s *Store) Remove() error {
	return os.RemoveAll(s.path)
}

func openReadOnly(path string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:               true,
		ErrorIfMissing:         true,
		OpenFilesCacheCapacity: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open table database %s: %w", path, err)
	}
	return db, nil
}

func indexKey(index int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

type client struct {
	db *leveldb.DB
}

// Get retrieves the Example with the specified index if it exists
func (c *client) Get(index int) (*tablegen.Example, error) {
	if index < 0 {
		return nil, errors.MissingExampleError{Index: index}
	}
	val, err := c.db.Get(indexKey(index), nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.MissingExampleError{Index: index}
	} else if err != nil {
		return nil, err
	}
	example := &tablegen.Example{}
	if _, err := example.UnmarshalMsg(val); err != nil {
		return nil, fmt.Errorf("unable to decode example %d: %w", index, err)
	}
	return example, nil
}

func (c *client) Close() error {
	return c.db.Close()
}
