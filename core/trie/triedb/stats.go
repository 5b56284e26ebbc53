package triedb

import (
	"errors"

	"github.com/NethermindEth/committer/db"
)

// BucketStats summarises the keys stored in one bucket.
type BucketStats struct {
	Bucket    db.Bucket
	Inner     int
	Leaves    int
	KeySize   int
	ValueSize int
}

func (s BucketStats) Total() int {
	return s.Inner + s.Leaves
}

// Stats walks every bucket and counts its entries. Entries of buckets that
// hold nodes are split by kind.
func (d *Database) Stats() ([]BucketStats, error) {
	stats := make([]BucketStats, 0, len(db.BucketValues()))
	for _, bucket := range db.BucketValues() {
		s, err := d.bucketStats(bucket)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (d *Database) bucketStats(bucket db.Bucket) (BucketStats, error) {
	s := BucketStats{Bucket: bucket}
	it, err := d.disk.NewIterator(bucket.Key(), true)
	if err != nil {
		return s, err
	}

	for it.Next() {
		key := it.Key()
		value, err := it.Value()
		if err != nil {
			return s, errors.Join(err, it.Close())
		}
		s.KeySize += len(key)
		s.ValueSize += len(value)
		if bucket != db.StateRoots && len(key) > 1 && key[1] == leafKind {
			s.Leaves++
		} else {
			s.Inner++
		}
	}
	return s, it.Close()
}
