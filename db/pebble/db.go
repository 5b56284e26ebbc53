package pebble

import (
	"errors"
	"sync"
	"testing"

	"github.com/NethermindEth/committer/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var _ db.KeyValueStore = (*DB)(nil)

type DB struct {
	pebble    *pebble.DB
	closeLock sync.RWMutex
	closed    bool
}

// New opens a new database at the given path
func New(path string, opts ...Option) (*DB, error) {
	options := &pebble.Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return newPebble(path, options)
}

// NewMem opens a new in-memory database
func NewMem() (*DB, error) {
	return newPebble("", &pebble.Options{
		FS: vfs.NewMem(),
	})
}

// NewMemTest opens a new in-memory database, closing it when the test ends
func NewMemTest(t testing.TB) *DB {
	memDB, err := NewMem()
	if err != nil {
		t.Fatalf("create in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := memDB.Close(); err != nil {
			t.Errorf("close in-memory db: %v", err)
		}
	})
	return memDB
}

func newPebble(path string, options *pebble.Options) (*DB, error) {
	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, err
	}
	if options.Cache != nil {
		// pebble holds its own reference from here on
		options.Cache.Unref()
	}
	return &DB{pebble: pDB}, nil
}

func (d *DB) Has(key []byte) (bool, error) {
	_, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}

func (d *DB) Get(key []byte, cb func(value []byte) error) error {
	val, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return db.ErrKeyNotFound
		}
		return err
	}

	if err := cb(val); err != nil {
		_ = closer.Close()
		return err
	}
	return closer.Close()
}

func (d *DB) Put(key, value []byte) error {
	return d.pebble.Set(key, value, pebble.Sync)
}

func (d *DB) Delete(key []byte) error {
	return d.pebble.Delete(key, pebble.Sync)
}

func (d *DB) NewBatch() db.Batch {
	return newBatch(d.pebble.NewBatch(), d)
}

func (d *DB) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	iterOpt := &pebble.IterOptions{LowerBound: prefix}
	if withUpperBound {
		iterOpt.UpperBound = db.UpperBound(prefix)
	}

	it, err := d.pebble.NewIter(iterOpt)
	if err != nil {
		return nil, err
	}
	return &iterator{iter: it}, nil
}

// Close : see io.Closer.Close
func (d *DB) Close() error {
	d.closeLock.Lock()
	defer d.closeLock.Unlock()

	if d.closed {
		return pebble.ErrClosed
	}
	d.closed = true
	return d.pebble.Close()
}

// Impl returns the underlying pebble database
func (d *DB) Impl() any {
	return d.pebble
}
