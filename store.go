package tablegen

// TableStore is a database of Examples addressable by index. A TableStore hands out independent
// clients so that it is never shared across worker boundaries.
type TableStore interface {
	// Len returns the number of Examples in the store
	Len() int
	// Open returns a new client. Each worker opens its own client once and keeps it for its lifetime.
	Open() (StoreClient, error)
}

// StoreClient retrieves Examples from a TableStore
type StoreClient interface {
	Get(index int) (*Example, error)
	Close() error
}

// LocatableTableStore is a TableStore which lives on disk, and can therefore be opened by
// another process given its Path
type LocatableTableStore interface {
	TableStore
	Path() string
}
