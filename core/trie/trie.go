package trie

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/triedb"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

// Heights of the Starknet tries
const (
	StorageTrieHeight   = 251
	ContractsTrieHeight = 251
	ClassesTrieHeight   = 251
)

type Path = trieutils.BitArray

// Update binds a key to a new leaf. A nil or empty leaf deletes the key.
type Update struct {
	Key   felt.Felt
	Value trienode.Leaf
}

// Result of committing one update batch to one trie.
type Result struct {
	Root felt.Felt
	// Nodes holds every node created by the commit. Nodes that already
	// existed under the previous root are referenced by hash and not repeated.
	Nodes *trienode.NodeSet
}

// Trie is a stateless view over the content-addressed node store for one
// trie. It holds no root: every operation takes the root it works on, and a
// commit never modifies a stored node. It is safe for concurrent use.
type Trie struct {
	id         trieutils.ID
	height     uint8
	hashFn     crypto.HashFn
	reader     triedb.NodeReader
	decodeLeaf trienode.LeafDecoder
}

func New(id trieutils.ID, height uint8, hashFn crypto.HashFn, reader triedb.NodeReader,
	decodeLeaf trienode.LeafDecoder,
) *Trie {
	if height == 0 || height > trieutils.MaxLen {
		panic(fmt.Sprintf("invalid trie height %d", height))
	}
	return &Trie{
		id:         id,
		height:     height,
		hashFn:     hashFn,
		reader:     reader,
		decodeLeaf: decodeLeaf,
	}
}

func (t *Trie) ID() trieutils.ID {
	return t.id
}

func (t *Trie) Height() uint8 {
	return t.height
}

func (t *Trie) HashFn() crypto.HashFn {
	return t.hashFn
}

// Commit applies updates to the trie rooted at root and returns the new root
// with the nodes created on the way. The batch is validated before anything is
// hashed, the order of updates does not matter, and updates that leave a
// subtree as it was produce no nodes for it.
func (t *Trie) Commit(ctx context.Context, root felt.Felt, updates []Update) (*Result, error) {
	start := time.Now()

	keyed, err := t.prepare(updates)
	if err != nil {
		return nil, err
	}

	c := &committer{
		ctx:   ctx,
		trie:  t,
		nodes: trienode.NewNodeSet(t.id.Type),
	}
	res := &Result{Root: root, Nodes: c.nodes}
	if len(keyed) == 0 {
		return res, nil
	}

	v, changed, err := c.update(0, refView(root), keyed)
	if err != nil {
		return nil, err
	}
	if changed {
		if res.Root, err = c.materialise(v); err != nil {
			return nil, err
		}
	}

	trieType := t.id.Type.String()
	c.counts.flush(trieType)
	commitDuration.WithLabelValues(trieType).Observe(time.Since(start).Seconds())
	return res, nil
}

type keyedUpdate struct {
	path  Path
	key   felt.Felt
	value trienode.Leaf
}

// deletes reports whether the update removes its key
func (u *keyedUpdate) deletes() bool {
	return u.value == nil || u.value.IsEmpty()
}

// prepare validates the batch and returns it sorted by key.
func (t *Trie) prepare(updates []Update) ([]keyedUpdate, error) {
	keyed := make([]keyedUpdate, len(updates))
	for i := range updates {
		u := &updates[i]
		path, err := t.keyPath(u.Key)
		if err != nil {
			return nil, err
		}
		keyed[i] = keyedUpdate{path: path, key: u.Key, value: u.Value}
	}

	slices.SortFunc(keyed, func(a, b keyedUpdate) int {
		return a.path.Cmp(&b.path)
	})
	for i := 1; i < len(keyed); i++ {
		if keyed[i-1].path.Equal(&keyed[i].path) {
			return nil, &KeyError{Trie: t.id, Key: keyed[i].key, Err: ErrDuplicateKey}
		}
	}
	return keyed, nil
}

func (t *Trie) keyPath(key felt.Felt) (Path, error) {
	if key.BitLen() > int(t.height) {
		return Path{}, &KeyError{Trie: t.id, Key: key, Err: ErrInvalidKey}
	}
	return trieutils.FeltToBitArray(t.height, &key), nil
}

// node loads and decodes the node stored under hash at position at.
func (t *Trie) node(ctx context.Context, at *Path, hash felt.Felt, isLeaf bool) (trienode.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := t.reader.Node(t.id.Type, hash, isLeaf)
	if err != nil {
		if errors.Is(err, triedb.ErrNotFound) {
			return nil, &MissingNodeError{Trie: t.id, Path: *at, Hash: hash, err: err}
		}
		return nil, err
	}
	nodesResolved.WithLabelValues(t.id.Type.String()).Inc()

	n, err := trienode.DecodeNode(blob, t.decodeLeaf)
	if err != nil {
		return nil, fmt.Errorf("%s: decode node %s: %w", t.id, hash.String(), err)
	}
	if n.IsLeaf() != isLeaf {
		return nil, fmt.Errorf("%s: node %s at path %s: %w", t.id, hash.String(), at.String(), trienode.ErrInvalidEncoding)
	}
	return n, nil
}

// Get returns the leaf stored under key in the trie rooted at root, or nil if
// the key is absent.
func (t *Trie) Get(ctx context.Context, root, key felt.Felt) (trienode.Leaf, error) {
	var leaf trienode.Leaf
	err := t.walk(ctx, root, key, func(n trienode.Node) {
		if l, ok := n.(*trienode.LeafNode); ok {
			leaf = l.Value
		}
	})
	if err != nil {
		return nil, err
	}
	return leaf, nil
}

// walk visits the nodes on the path from root towards key, ending at the
// leaf of key or at the node where the path leaves the trie.
func (t *Trie) walk(ctx context.Context, root, key felt.Felt, visit func(trienode.Node)) error {
	path, err := t.keyPath(key)
	if err != nil {
		return err
	}

	var (
		hash  = root
		depth uint8
		at    Path
	)
	for !hash.IsZero() {
		at.MSBs(&path, depth)
		n, err := t.node(ctx, &at, hash, depth == t.height)
		if err != nil {
			return err
		}
		visit(n)

		switch n := n.(type) {
		case *trienode.LeafNode:
			return nil
		case *trienode.BinaryNode:
			hash = n.Child(path.Bit(depth))
			depth++
		case *trienode.EdgeNode:
			var segment Path
			segment.Subset(&path, depth, depth+n.Path.Len())
			if !segment.Equal(&n.Path) {
				return nil
			}
			hash = n.Child
			depth += n.Path.Len()
		}
		if depth > t.height {
			return fmt.Errorf("%s: path %s runs past height %d: %w", t.id, at.String(), t.height, trienode.ErrInvalidEncoding)
		}
	}
	return nil
}
