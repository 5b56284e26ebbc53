package triedb

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrNotFound is returned when a referenced hash has no stored node.
	// It indicates a corrupted or incomplete store and is never retried.
	ErrNotFound = errors.New("trie node not found")
	ErrConflict = trienode.ErrConflict
)

// Node kinds share a bucket but never a key.
const (
	innerKind byte = 0
	leafKind  byte = 1
)

// NodeReader resolves node hashes to their encodings.
type NodeReader interface {
	Node(tt trieutils.TrieType, hash felt.Felt, isLeaf bool) ([]byte, error)
}

type Config struct {
	// CleanCacheSize is the number of encoded nodes kept in memory
	CleanCacheSize int `validate:"gte=0"`
}

var DefaultConfig = &Config{
	CleanCacheSize: 1 << 16,
}

// Record is an extra key-value pair written atomically with a batch of facts.
type Record struct {
	Key   []byte
	Value []byte
}

// Database is a content-addressed node store: every node is persisted under
// the hash of its content, so a hash resolves to exactly one node forever.
// It is safe for concurrent use.
type Database struct {
	disk   db.KeyValueStore
	config *Config

	cleanCache *lru.Cache[string, []byte]
	// serialises the check-then-write sequence of concurrent writers
	writeLock sync.Mutex

	log utils.SimpleLogger
}

func New(disk db.KeyValueStore, config *Config) *Database {
	if config == nil {
		config = DefaultConfig
	}
	d := &Database{
		disk:   disk,
		config: config,
		log:    utils.NewNopLogger(),
	}
	if config.CleanCacheSize > 0 {
		d.cleanCache, _ = lru.New[string, []byte](config.CleanCacheSize)
	}
	return d
}

func (d *Database) WithLogger(log utils.SimpleLogger) *Database {
	d.log = log
	return d
}

// NodeKey returns the storage key of a node: bucket | kind | hash.
func NodeKey(tt trieutils.TrieType, hash felt.Felt, isLeaf bool) []byte {
	kind := innerKind
	if isLeaf {
		kind = leafKind
	}
	hashBytes := hash.Bytes()
	return tt.Bucket().Key([]byte{kind}, hashBytes[:])
}

// Node returns the encoded node stored under hash.
func (d *Database) Node(tt trieutils.TrieType, hash felt.Felt, isLeaf bool) ([]byte, error) {
	key := NodeKey(tt, hash, isLeaf)
	if d.cleanCache != nil {
		if blob, found := d.cleanCache.Get(string(key)); found {
			nodeReads.WithLabelValues("cache").Inc()
			return blob, nil
		}
	}

	var blob []byte
	err := d.disk.Get(key, func(value []byte) error {
		blob = bytes.Clone(value)
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s %s (leaf %t)", ErrNotFound, tt, hash.String(), isLeaf)
		}
		return nil, err
	}
	nodeReads.WithLabelValues("disk").Inc()

	if d.cleanCache != nil {
		d.cleanCache.Add(string(key), blob)
	}
	return blob, nil
}

// Has reports whether a node is stored under hash.
func (d *Database) Has(tt trieutils.TrieType, hash felt.Felt, isLeaf bool) (bool, error) {
	key := NodeKey(tt, hash, isLeaf)
	if d.cleanCache != nil && d.cleanCache.Contains(string(key)) {
		return true, nil
	}
	return d.disk.Has(key)
}

// Write persists facts and records in a single atomic batch. Facts already
// stored with identical content are skipped, so replaying a batch is a
// no-op. A fact whose hash is stored with different content fails the whole
// batch with ErrConflict and nothing is written. Records follow the same rule.
func (d *Database) Write(facts *trienode.MergeNodeSet, records ...Record) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	start := time.Now()
	batch := d.disk.NewBatch()
	defer batch.Reset()
	var written, skipped int
	pending := make(map[string][]byte)

	put := func(key, blob []byte) error {
		existing, found := pending[string(key)]
		if !found {
			var err error
			if existing, found, err = d.get(key); err != nil {
				return err
			}
		}
		if found {
			if !bytes.Equal(existing, blob) {
				return ErrConflict
			}
			skipped++
			return nil
		}
		written++
		pending[string(key)] = blob
		return batch.Put(key, blob)
	}

	if facts != nil {
		err := facts.ForEach(func(tt trieutils.TrieType, key trienode.NodeKey, fact trienode.Fact) error {
			if err := put(NodeKey(tt, key.Hash, key.Leaf), fact.Blob); err != nil {
				return fmt.Errorf("write %s node %s: %w", tt, key.Hash.String(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, record := range records {
		if err := put(record.Key, record.Value); err != nil {
			return fmt.Errorf("write record %x: %w", record.Key, err)
		}
	}

	if written > 0 {
		if err := batch.Write(); err != nil {
			return err
		}
	}

	if d.cleanCache != nil {
		for key, blob := range pending {
			d.cleanCache.Add(key, blob)
		}
	}
	factsWritten.WithLabelValues("written").Add(float64(written))
	factsWritten.WithLabelValues("skipped").Add(float64(skipped))

	d.log.Debugw("Wrote trie nodes",
		"written", written,
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return nil
}

// Get reads a raw value outside the node namespace, such as a record
// written alongside facts.
func (d *Database) Get(key []byte) ([]byte, error) {
	value, found, err := d.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, db.ErrKeyNotFound
	}
	return value, nil
}

func (d *Database) get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := d.disk.Get(key, func(v []byte) error {
		value = bytes.Clone(v)
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}
