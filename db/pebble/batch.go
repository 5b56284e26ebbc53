package pebble

import (
	"github.com/NethermindEth/committer/db"
	"github.com/cockroachdb/pebble"
)

var _ db.Batch = (*batch)(nil)

type batch struct {
	batch *pebble.Batch
	db    *DB
	size  int // size of the batch in bytes
}

func newBatch(dbBatch *pebble.Batch, db *DB) *batch {
	return &batch{
		batch: dbBatch,
		db:    db,
	}
}

func (b *batch) Put(key, value []byte) error {
	if b.batch == nil {
		return pebble.ErrClosed
	}

	if err := b.batch.Set(key, value, pebble.Sync); err != nil {
		return err
	}
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	if b.batch == nil {
		return pebble.ErrClosed
	}

	if err := b.batch.Delete(key, pebble.Sync); err != nil {
		return err
	}
	b.size += len(key)
	return nil
}

func (b *batch) Size() int {
	return b.size
}

func (b *batch) Write() error {
	if b.batch == nil {
		return pebble.ErrClosed
	}

	b.db.closeLock.RLock()
	defer b.db.closeLock.RUnlock()

	if b.db.closed {
		return pebble.ErrClosed
	}

	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}

	err := b.batch.Close()
	// Clear all the fields to prevent any further use of the batch.
	*b = batch{}
	return err
}

func (b *batch) Reset() {
	if b.batch != nil {
		b.batch.Reset()
	}
	b.size = 0
}
