package db

// A write-only store that gathers changes in-memory and writes them to disk in a single atomic operation
type Batch interface {
	KeyValueWriter
	// Retrieves the value size of the data stored in the batch for writing
	Size() int
	// Flushes the data stored to disk
	Write() error
	// Resets the batch
	Reset()
}

// Produce a batch to write to the database
type Batcher interface {
	// Creates a write-only batch
	NewBatch() Batch
}
