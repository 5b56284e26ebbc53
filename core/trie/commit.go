package trie

import (
	"context"
	"fmt"
	"sort"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

// view is the state of the subtree occupying one position of the trie while a
// commit walks it. A view is one of
//
//   - empty: the zero value
//   - unresolved: only the hash of a previous node is known
//   - a leaf or binary node: path is empty and child is the node hash
//   - an edge: path leads from the position to child, which is never an edge
//
// Views built by the commit carry no hash until materialised, so an edge that
// is later extended or merged never turns into a fact.
type view struct {
	path  Path
	child felt.Felt

	hash       felt.Felt
	known      bool // hash is valid
	unresolved bool

	binary *trienode.BinaryNode // set on resolved binary views
}

func refView(hash felt.Felt) view {
	if hash.IsZero() {
		return view{}
	}
	return view{hash: hash, known: true, unresolved: true}
}

func nodeView(hash felt.Felt) view {
	return view{child: hash, hash: hash, known: true}
}

func (v *view) isEmpty() bool {
	return !v.known && v.child.IsZero()
}

// committer carries the state of a single Commit call.
type committer struct {
	ctx    context.Context
	trie   *Trie
	nodes  *trienode.NodeSet
	counts nodeCounts
}

// update applies ups, sorted and all sharing the first depth bits, to the
// subtree cur at depth. It reports whether the subtree changed; when it did
// not, the returned view is cur itself.
func (c *committer) update(depth uint8, cur view, ups []keyedUpdate) (view, bool, error) {
	if depth == c.trie.height {
		// keys are unique, so only one update reaches a leaf
		return c.updateLeaf(cur, &ups[0])
	}

	if cur.unresolved {
		var (
			at  Path
			err error
		)
		at.MSBs(&ups[0].path, depth)
		if cur, err = c.resolve(depth, &at, cur); err != nil {
			return view{}, false, err
		}
	}

	switch {
	case cur.isEmpty():
		return c.insert(depth, ups)
	case cur.binary != nil:
		left, right := refView(cur.binary.Left), refView(cur.binary.Right)
		v, changed, err := c.split(depth, left, right, ups)
		if err != nil || !changed {
			return cur, false, err
		}
		return v, true, nil
	default:
		return c.updateEdge(depth, cur, ups)
	}
}

func (c *committer) updateLeaf(cur view, u *keyedUpdate) (view, bool, error) {
	if u.deletes() {
		return view{}, !cur.isEmpty(), nil
	}

	leaf := &trienode.LeafNode{Value: u.value}
	hash := leaf.Hash(c.trie.hashFn)
	if cur.known && cur.hash == hash {
		return cur, false, nil
	}
	if err := c.add(hash, leaf); err != nil {
		return view{}, false, err
	}
	return nodeView(hash), true, nil
}

// insert builds the subtree of ups below an empty position.
func (c *committer) insert(depth uint8, ups []keyedUpdate) (view, bool, error) {
	if len(ups) == 1 {
		u := &ups[0]
		if u.deletes() {
			return view{}, false, nil
		}
		leaf := &trienode.LeafNode{Value: u.value}
		hash := leaf.Hash(c.trie.hashFn)
		if err := c.add(hash, leaf); err != nil {
			return view{}, false, err
		}
		v := view{child: hash}
		v.path.LSBs(&u.path, depth)
		return v, true, nil
	}

	first, last := &ups[0].path, &ups[len(ups)-1].path
	if common := trieutils.CommonMSBsLen(first, last); common > depth {
		sub, changed, err := c.insert(common, ups)
		if err != nil || !changed {
			return view{}, false, err
		}
		var prefix Path
		prefix.Subset(first, depth, common)
		return c.prepend(&prefix, sub), true, nil
	}
	return c.split(depth, view{}, view{}, ups)
}

func (c *committer) updateEdge(depth uint8, cur view, ups []keyedUpdate) (view, bool, error) {
	length := cur.path.Len()
	var segment Path
	common := length
	for _, u := range []*keyedUpdate{&ups[0], &ups[len(ups)-1]} {
		segment.Subset(&u.path, depth, depth+length)
		common = min(common, trieutils.CommonMSBsLen(&cur.path, &segment))
	}

	switch {
	case common == length:
		// every update goes below the edge
		sub, changed, err := c.update(depth+length, refView(cur.child), ups)
		if err != nil || !changed {
			return cur, false, err
		}
		return c.prepend(&cur.path, sub), true, nil
	case common > 0:
		// the edge splits below its first common bits
		rest := view{child: cur.child}
		rest.path.LSBs(&cur.path, common)
		sub, changed, err := c.update(depth+common, rest, ups)
		if err != nil || !changed {
			return cur, false, err
		}
		var prefix Path
		prefix.MSBs(&cur.path, common)
		return c.prepend(&prefix, sub), true, nil
	default:
		// the edge splits at its first bit
		below := refView(cur.child)
		if length > 1 {
			below = view{child: cur.child}
			below.path.LSBs(&cur.path, 1)
		}
		var left, right view
		if cur.path.MSB() == 0 {
			left = below
		} else {
			right = below
		}
		v, changed, err := c.split(depth, left, right, ups)
		if err != nil || !changed {
			return cur, false, err
		}
		return v, true, nil
	}
}

// split routes ups to the children of position depth by their bit at depth
// and joins the results. The returned view is only meaningful when changed.
func (c *committer) split(depth uint8, left, right view, ups []keyedUpdate) (view, bool, error) {
	mid := sort.Search(len(ups), func(i int) bool {
		return ups[i].path.Bit(depth) == 1
	})

	var (
		leftChanged, rightChanged bool
		err                       error
	)
	if mid > 0 {
		if left, leftChanged, err = c.update(depth+1, left, ups[:mid]); err != nil {
			return view{}, false, err
		}
	}
	if mid < len(ups) {
		if right, rightChanged, err = c.update(depth+1, right, ups[mid:]); err != nil {
			return view{}, false, err
		}
	}
	if !leftChanged && !rightChanged {
		return view{}, false, nil
	}

	var at Path
	at.MSBs(&ups[0].path, depth)
	v, err := c.join(depth, &at, left, right)
	return v, true, err
}

// join builds the subtree at position at from its two children. A single
// remaining child is pulled up into an edge, two children make a binary node.
func (c *committer) join(depth uint8, at *Path, left, right view) (view, error) {
	switch {
	case left.isEmpty() && right.isEmpty():
		return view{}, nil
	case left.isEmpty():
		return c.pullUp(depth, at, 1, right)
	case right.isEmpty():
		return c.pullUp(depth, at, 0, left)
	}

	leftHash, err := c.materialise(left)
	if err != nil {
		return view{}, err
	}
	rightHash, err := c.materialise(right)
	if err != nil {
		return view{}, err
	}

	n := &trienode.BinaryNode{Left: leftHash, Right: rightHash}
	hash := n.Hash(c.trie.hashFn)
	if err := c.add(hash, n); err != nil {
		return view{}, err
	}
	v := nodeView(hash)
	v.binary = n
	return v, nil
}

// pullUp merges the only child, found under bit, into an edge starting at depth.
func (c *committer) pullUp(depth uint8, at *Path, bit uint8, child view) (view, error) {
	if child.unresolved {
		var (
			childAt Path
			err     error
		)
		childAt.AppendBit(at, bit)
		if child, err = c.resolve(depth+1, &childAt, child); err != nil {
			return view{}, err
		}
	}
	return c.prepend(new(Path).SetBit(bit), child), nil
}

// prepend places prefix above sub. sub must be resolved.
func (c *committer) prepend(prefix *Path, sub view) view {
	if sub.isEmpty() {
		return view{}
	}
	v := view{child: sub.child}
	v.path.Append(prefix, &sub.path)
	return v
}

// materialise returns the hash of v, creating its edge node if it has none yet.
func (c *committer) materialise(v view) (felt.Felt, error) {
	if v.known {
		return v.hash, nil
	}
	if v.isEmpty() {
		return felt.Zero, nil
	}

	n := &trienode.EdgeNode{Path: v.path, Child: v.child}
	hash := n.Hash(c.trie.hashFn)
	if err := c.add(hash, n); err != nil {
		return felt.Zero, err
	}
	return hash, nil
}

// resolve loads the previous node behind an unresolved view at depth.
func (c *committer) resolve(depth uint8, at *Path, v view) (view, error) {
	if depth == c.trie.height {
		// only leaves live at full depth and their hash is all a commit needs
		return nodeView(v.hash), nil
	}

	n, err := c.trie.node(c.ctx, at, v.hash, false)
	if err != nil {
		return view{}, err
	}
	switch n := n.(type) {
	case *trienode.EdgeNode:
		if uint16(depth)+uint16(n.Path.Len()) > uint16(c.trie.height) {
			return view{}, fmt.Errorf("%s: edge %s at path %s runs past height %d: %w",
				c.trie.id, v.hash.String(), at.String(), c.trie.height, trienode.ErrInvalidEncoding)
		}
		return view{path: n.Path, child: n.Child, hash: v.hash, known: true}, nil
	case *trienode.BinaryNode:
		resolved := nodeView(v.hash)
		resolved.binary = n
		return resolved, nil
	default:
		return view{}, fmt.Errorf("%s: unexpected %s at path %s: %w", c.trie.id, n, at.String(), trienode.ErrInvalidEncoding)
	}
}

func (c *committer) add(hash felt.Felt, n trienode.Node) error {
	switch n.(type) {
	case *trienode.BinaryNode:
		c.counts.binary++
	case *trienode.EdgeNode:
		c.counts.edge++
	case *trienode.LeafNode:
		c.counts.leaf++
	}
	return c.nodes.Add(hash, n)
}
