package trie

import (
	"context"
	"fmt"

	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
)

// virtualNode is a subtree root seen as an edge of path.Len() bits above a node with hash
// bottom. Nodes that are not edges have an empty path and their own hash as bottom, so the
// empty subtree is the zero bottom with an empty path.
type virtualNode struct {
	bottom felt.Felt
	path   Path
	height uint8
}

func (v virtualNode) isEmpty() bool {
	return v.bottom.IsZero()
}

// reader resolves virtual nodes into their children, going to storage only for preimages
// missing from facts.
type reader struct {
	ffc   *fact.Context
	facts *Facts
}

func newReader(ffc *fact.Context, facts *Facts) *reader {
	if facts == nil {
		facts = NewFacts()
	}
	return &reader{ffc: ffc, facts: facts}
}

func (r *reader) decode(hash *felt.Felt, data []byte) (node, error) {
	n, err := decodeNode(data)
	if err != nil {
		return nil, &fact.DecodeError{Bucket: db.PatriciaNode, Hash: *hash, Err: err}
	}
	r.facts.add(hash, n)
	nodesRead.Inc()
	return n, nil
}

func (r *reader) preimage(ctx context.Context, hash *felt.Felt) (node, error) {
	if n, ok := r.facts.get(hash); ok {
		return n, nil
	}
	data, err := r.ffc.Get(ctx, db.PatriciaNode, hash)
	if err != nil {
		return nil, err
	}
	readRounds.Inc()
	return r.decode(hash, data)
}

// children splits v, which must be above height 0, into its two children.
func (r *reader) children(ctx context.Context, v virtualNode) (virtualNode, virtualNode, error) {
	empty := virtualNode{height: v.height - 1}
	if v.isEmpty() {
		return empty, empty, nil
	}

	if v.path.Len() == 0 {
		n, err := r.preimage(ctx, &v.bottom)
		if err != nil {
			return empty, empty, err
		}
		switch n := n.(type) {
		case binaryNode:
			return virtualNode{bottom: n.left, height: v.height - 1},
				virtualNode{bottom: n.right, height: v.height - 1}, nil
		case edgeNode:
			if err = checkEdge(&v.bottom, n, v.height); err != nil {
				return empty, empty, err
			}
			v = virtualNode{bottom: n.bottom, path: n.path, height: v.height}
		}
	}

	child := virtualNode{bottom: v.bottom, path: v.path.Tail(), height: v.height - 1}
	if v.path.MSB() {
		return empty, child, nil
	}
	return child, empty, nil
}

// checkEdge rejects a stored edge that is longer than the subtree it roots.
func checkEdge(hash *felt.Felt, edge edgeNode, height uint8) error {
	if edge.path.Len() > height {
		return &fact.DecodeError{
			Bucket: db.PatriciaNode,
			Hash:   *hash,
			Err:    fmt.Errorf("%w: edge of length %d at height %d", errBadNodeEncoding, edge.path.Len(), height),
		}
	}
	return nil
}

type branch struct {
	node virtualNode
	keys []Path
}

// prefetch walks the paths to keys breadth first and loads every preimage on them into facts
// with one GetMany per level.
func (r *reader) prefetch(ctx context.Context, root virtualNode, keys []Path) error {
	if len(keys) == 0 {
		return nil
	}
	frontier := []branch{{node: root, keys: keys}}
	for len(frontier) > 0 {
		if err := r.fetch(ctx, frontier); err != nil {
			return err
		}

		var next []branch
		for _, b := range frontier {
			if b.node.height == 0 || b.node.isEmpty() {
				continue
			}
			left, right, err := r.children(ctx, b.node)
			if err != nil {
				return err
			}
			leftKeys, rightKeys := splitKeys(b.keys, b.node.height-1)
			if len(leftKeys) > 0 && !left.isEmpty() {
				next = append(next, branch{node: left, keys: leftKeys})
			}
			if len(rightKeys) > 0 && !right.isEmpty() {
				next = append(next, branch{node: right, keys: rightKeys})
			}
		}
		frontier = next
	}
	return nil
}

func (r *reader) fetch(ctx context.Context, frontier []branch) error {
	var (
		hashes []felt.Felt
		keys   [][]byte
	)
	seen := make(map[felt.Felt]struct{})
	for _, b := range frontier {
		n := b.node
		if n.height == 0 || n.isEmpty() || n.path.Len() > 0 {
			continue
		}
		if _, ok := seen[n.bottom]; ok {
			continue
		}
		if _, ok := r.facts.get(&n.bottom); ok {
			continue
		}
		seen[n.bottom] = struct{}{}
		hashes = append(hashes, n.bottom)
		keys = append(keys, fact.Key(db.PatriciaNode, &n.bottom))
	}
	if len(keys) == 0 {
		return nil
	}

	stored, err := r.ffc.GetMany(ctx, keys)
	if err != nil {
		return err
	}
	readRounds.Inc()
	for i := range hashes {
		data, ok := stored[string(keys[i])]
		if !ok {
			return &fact.MissingFactError{Bucket: db.PatriciaNode, Hash: hashes[i]}
		}
		if _, err = r.decode(&hashes[i], data); err != nil {
			return err
		}
	}
	return nil
}

// leafHash follows key from root down to height 0.
func (r *reader) leafHash(ctx context.Context, root virtualNode, key Path) (felt.Felt, error) {
	v := root
	for v.height > 0 {
		if v.isEmpty() {
			return EmptyNodeHash, nil
		}
		left, right, err := r.children(ctx, v)
		if err != nil {
			return EmptyNodeHash, err
		}
		if key.Test(v.height - 1) {
			v = right
		} else {
			v = left
		}
	}
	return v.bottom, nil
}

func splitKeys(keys []Path, bit uint8) (left, right []Path) {
	for _, key := range keys {
		if key.Test(bit) {
			right = append(right, key)
		} else {
			left = append(left, key)
		}
	}
	return left, right
}
