package db

import (
	"slices"
	"strconv"
)

type Bucket byte

// Pebble does not support buckets to differentiate between groups of
// keys like Bolt or MDBX does. We use a global prefix list as a poor
// man's bucket alternative.
const (
	ContractStorageTrie Bucket = iota // ContractStorageTrie + kind + node hash -> encoded node
	ContractsTrie                     // ContractsTrie + kind + node hash -> encoded node
	ClassesTrie                       // ClassesTrie + kind + node hash -> encoded node
	StateRoots                        // StateRoots + state commitment -> contracts root, classes root
)

var bucketNames = [...]string{
	ContractStorageTrie: "ContractStorageTrie",
	ContractsTrie:       "ContractsTrie",
	ClassesTrie:         "ClassesTrie",
	StateRoots:          "StateRoots",
}

// BucketValues returns all defined buckets in prefix order
func BucketValues() []Bucket {
	return []Bucket{ContractStorageTrie, ContractsTrie, ClassesTrie, StateRoots}
}

func (b Bucket) String() string {
	if int(b) < len(bucketNames) {
		return bucketNames[b]
	}
	return "Bucket(" + strconv.Itoa(int(b)) + ")"
}

// Key flattens a prefix and series of byte arrays into a single []byte.
func (b Bucket) Key(key ...[]byte) []byte {
	size := 1
	for _, k := range key {
		size += len(k)
	}
	out := make([]byte, 1, size)
	out[0] = byte(b)
	for _, k := range key {
		out = append(out, k...)
	}
	return slices.Clip(out)
}
