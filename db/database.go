package db

import "io"

//go:generate mockgen -destination=../mocks/mock_kvstore.go -package=mocks github.com/NethermindEth/committer/db KeyValueStore

// Represents a data store that can read from the database
type KeyValueReader interface {
	// Checks if a key exists in the data store
	Has(key []byte) (bool, error)
	// Retrieves a value for a given key if it exists. The value passed to cb
	// is only valid for the duration of the callback.
	Get(key []byte, cb func(value []byte) error) error
}

// Represents a data store that can write to the database
type KeyValueWriter interface {
	// Inserts a given value into the data store
	Put(key []byte, value []byte) error
	// Deletes a given key from the data store
	Delete(key []byte) error
}

// Represents a data store that can create iterators over its key space
type Iterable interface {
	// Creates an iterator positioned before the first key with the given prefix.
	// If withUpperBound is set, iteration stops at the end of the prefix range.
	NewIterator(prefix []byte, withUpperBound bool) (Iterator, error)
}

// Represents a key-value data store that can handle different operations
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	Iterable
	io.Closer
}
