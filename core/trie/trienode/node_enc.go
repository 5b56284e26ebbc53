package trienode

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/committer/core/felt"
)

// Encoded node layout, first byte is the node tag:
//
//	binary: tag | left (32) | right (32)
//	edge:   tag | child (32) | path encoding (1..33)
//	leaf:   tag | leaf payload
const (
	binaryNodeTag byte = iota
	edgeNodeTag
	leafNodeTag
)

const (
	binaryNodeSize = 1 + 2*felt.Bytes
	minEdgeSize    = 1 + felt.Bytes + 1
)

var ErrInvalidEncoding = errors.New("invalid node encoding")

func (n *BinaryNode) Blob() ([]byte, error) {
	buf := make([]byte, 0, binaryNodeSize)
	left, right := n.Left.Bytes(), n.Right.Bytes()
	buf = append(buf, binaryNodeTag)
	buf = append(buf, left[:]...)
	return append(buf, right[:]...), nil
}

func (n *EdgeNode) Blob() ([]byte, error) {
	buf := make([]byte, 0, 1+felt.Bytes+n.Path.EncodedLen())
	child := n.Child.Bytes()
	buf = append(buf, edgeNodeTag)
	buf = append(buf, child[:]...)
	return append(buf, n.Path.EncodedBytes()...), nil
}

func (n *LeafNode) Blob() ([]byte, error) {
	payload, err := n.Value.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append([]byte{leafNodeTag}, payload...), nil
}

// DecodeNode reverses Blob. Leaf payloads are handed to decodeLeaf.
func DecodeNode(blob []byte, decodeLeaf LeafDecoder) (Node, error) {
	if len(blob) == 0 {
		return nil, ErrInvalidEncoding
	}

	switch blob[0] {
	case binaryNodeTag:
		if len(blob) != binaryNodeSize {
			return nil, fmt.Errorf("%w: binary node of %d bytes", ErrInvalidEncoding, len(blob))
		}
		n := new(BinaryNode)
		if err := n.Left.SetBytesCanonical(blob[1 : 1+felt.Bytes]); err != nil {
			return nil, err
		}
		if err := n.Right.SetBytesCanonical(blob[1+felt.Bytes:]); err != nil {
			return nil, err
		}
		return n, nil
	case edgeNodeTag:
		if len(blob) < minEdgeSize {
			return nil, fmt.Errorf("%w: edge node of %d bytes", ErrInvalidEncoding, len(blob))
		}
		n := new(EdgeNode)
		if err := n.Child.SetBytesCanonical(blob[1 : 1+felt.Bytes]); err != nil {
			return nil, err
		}
		if err := n.Path.UnmarshalBinary(blob[1+felt.Bytes:]); err != nil {
			return nil, err
		}
		if n.Path.IsEmpty() {
			return nil, fmt.Errorf("%w: edge node with empty path", ErrInvalidEncoding)
		}
		return n, nil
	case leafNodeTag:
		if decodeLeaf == nil {
			return nil, fmt.Errorf("%w: no leaf decoder", ErrInvalidEncoding)
		}
		leaf, err := decodeLeaf(blob[1:])
		if err != nil {
			return nil, err
		}
		return &LeafNode{Value: leaf}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidEncoding, blob[0])
	}
}
