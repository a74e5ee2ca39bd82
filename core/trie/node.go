package trie

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
)

const (
	binaryNodeSize = 2 * felt.Bytes
	edgeNodeSize   = 3 * felt.Bytes
)

var errBadNodeEncoding = errors.New("bad node encoding")

// node is the preimage of an inner node hash: a binaryNode or an edgeNode.
type node interface {
	fact.Fact
	isNode()
}

var (
	_ node = binaryNode{}
	_ node = edgeNode{}
)

// binaryNode has two non-empty children.
// https://docs.starknet.io/architecture-and-concepts/network-architecture/starknet-state/#trie_construction
type binaryNode struct {
	left, right felt.Felt
}

func (binaryNode) isNode() {}

func (binaryNode) Bucket() db.Bucket {
	return db.PatriciaNode
}

func (n binaryNode) Hash(hash crypto.HashFunc) *felt.Felt {
	return hash(&n.left, &n.right)
}

func (n binaryNode) MarshalBinary() ([]byte, error) {
	data := make([]byte, 0, binaryNodeSize)
	data = append(data, n.left.Marshal()...)
	return append(data, n.right.Marshal()...), nil
}

// edgeNode skips path.Len() levels with a single non-empty child at the bottom.
type edgeNode struct {
	bottom felt.Felt
	path   Path
}

func (edgeNode) isNode() {}

func (edgeNode) Bucket() db.Bucket {
	return db.PatriciaNode
}

// Hash is H(bottom, path) + length.
func (n edgeNode) Hash(hash crypto.HashFunc) *felt.Felt {
	pathFelt := n.path.Felt()
	h := hash(&n.bottom, &pathFelt)
	return h.Add(h, felt.FromUint64(uint64(n.path.Len())))
}

func (n edgeNode) MarshalBinary() ([]byte, error) {
	pathFelt := n.path.Felt()
	data := make([]byte, 0, edgeNodeSize)
	data = append(data, n.bottom.Marshal()...)
	data = append(data, pathFelt.Marshal()...)
	return append(data, felt.FromUint64(uint64(n.path.Len())).Marshal()...), nil
}

// decodeNode distinguishes binary and edge preimages by their length.
func decodeNode(data []byte) (node, error) {
	switch len(data) {
	case binaryNodeSize:
		var n binaryNode
		if err := n.left.SetBytesCanonical(data[:felt.Bytes]); err != nil {
			return nil, err
		}
		if err := n.right.SetBytesCanonical(data[felt.Bytes:]); err != nil {
			return nil, err
		}
		return n, nil
	case edgeNodeSize:
		var bottom, pathFelt, length felt.Felt
		if err := bottom.SetBytesCanonical(data[:felt.Bytes]); err != nil {
			return nil, err
		}
		if err := pathFelt.SetBytesCanonical(data[felt.Bytes : 2*felt.Bytes]); err != nil {
			return nil, err
		}
		if err := length.SetBytesCanonical(data[2*felt.Bytes:]); err != nil {
			return nil, err
		}
		if length.IsZero() || length.Cmp(felt.FromUint64(MaxHeight)) > 0 {
			return nil, fmt.Errorf("%w: edge length %s", errBadNodeEncoding, length.String())
		}
		pathLen := uint8(length.Bytes()[felt.Bytes-1])
		if bitLen(&pathFelt) > int(pathLen) {
			return nil, fmt.Errorf("%w: edge path %s longer than %d bits", errBadNodeEncoding, pathFelt.String(), pathLen)
		}
		return edgeNode{bottom: bottom, path: NewPath(&pathFelt, pathLen)}, nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", errBadNodeEncoding, len(data))
	}
}
