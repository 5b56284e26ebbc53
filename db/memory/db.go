package memory

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/NethermindEth/committer/db"
)

var (
	errDBClosed       = errors.New("memory database closed")
	errIteratorClosed = errors.New("memory iterator closed")
)

var _ db.KeyValueStore = (*Database)(nil)

// Represents an in-memory key-value store.
// It is thread-safe.
type Database struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

func (d *Database) Has(key []byte) (bool, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return false, errDBClosed
	}

	_, ok := d.db[string(key)]
	return ok, nil
}

func (d *Database) Get(key []byte, cb func(value []byte) error) error {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return errDBClosed
	}

	val, ok := d.db[string(key)]
	if !ok {
		return db.ErrKeyNotFound
	}

	return cb(val)
}

func (d *Database) Put(key, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return errDBClosed
	}

	d.db[string(key)] = slices.Clone(value)
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return errDBClosed
	}

	delete(d.db, string(key))
	return nil
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.db = nil
	return nil
}

func (d *Database) NewBatch() db.Batch { return newBatch(d) }

// NewIterator takes a sorted snapshot of the matching keys, so writes made
// after the call are not visible to the iterator.
func (d *Database) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return nil, errDBClosed
	}

	var (
		pr   = string(prefix)
		keys = make([]string, 0, len(d.db))
		vals = make([][]byte, 0, len(d.db))
	)

	for k := range d.db {
		if k < pr {
			continue
		}
		if withUpperBound && !strings.HasPrefix(k, pr) {
			continue
		}
		keys = append(keys, k)
	}

	sort.Strings(keys)
	for _, k := range keys {
		vals = append(vals, d.db[k])
	}

	return &iterator{
		curInd: -1,
		keys:   keys,
		values: vals,
	}, nil
}

// Len returns the number of keys currently stored
func (d *Database) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.db)
}
