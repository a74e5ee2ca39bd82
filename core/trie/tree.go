// Package trie implements the StarkNet binary Merkle-Patricia tree over content-addressed
// facts. A tree is the pair (root hash, height); every node is stored under its hash, so trees
// are immutable values and an update returns a new root while sharing untouched subtrees.
//
// Node hashes follow the [specification]: the empty node hashes to zero, a binary node to
// H(left, right) and an edge node to H(bottom, path) + length.
//
// [specification]: https://docs.starknet.io/architecture-and-concepts/network-architecture/starknet-state/#merkle_patricia_trie
package trie

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sort"

	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
)

// MaxHeight is the height of StarkNet state trees.
const MaxHeight = 251

var (
	ErrDuplicateIndex  = errors.New("duplicate index in modifications")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidHeight   = fmt.Errorf("tree height exceeds %d", MaxHeight)
)

// EmptyNodeHash is the hash of an empty subtree.
var EmptyNodeHash = felt.Zero

type Tree[L fact.Leaf[L]] struct {
	Root   felt.Felt
	Height uint8
}

type Modification[L any] struct {
	Index felt.Felt
	Leaf  L
}

// EmptyTree returns a tree whose every leaf is defaultLeaf. An empty default leaf needs no
// storage at all; any other default is written together with one binary node per level.
func EmptyTree[L fact.Leaf[L]](ctx context.Context, ffc *fact.Context, height uint8, defaultLeaf L) (Tree[L], error) {
	if height > MaxHeight {
		return Tree[L]{}, ErrInvalidHeight
	}
	if defaultLeaf.IsEmpty() {
		return Tree[L]{Root: EmptyNodeHash, Height: height}, nil
	}

	entries := make(map[string][]byte, int(height)+1)
	hash, err := ffc.Entry(entries, defaultLeaf)
	if err != nil {
		return Tree[L]{}, err
	}
	for range height {
		if hash, err = ffc.Entry(entries, binaryNode{left: *hash, right: *hash}); err != nil {
			return Tree[L]{}, err
		}
	}
	if err = ffc.PutMany(ctx, entries); err != nil {
		return Tree[L]{}, err
	}
	factsWritten.Add(float64(len(entries)))
	return Tree[L]{Root: *hash, Height: height}, nil
}

func (t Tree[L]) IsEmpty() bool {
	return t.Root.IsZero()
}

func (t Tree[L]) root() virtualNode {
	return virtualNode{bottom: t.Root, height: t.Height}
}

func (t Tree[L]) checkIndex(index *felt.Felt) error {
	if bitLen(index) > int(t.Height) {
		return fmt.Errorf("%w: %s at height %d", ErrIndexOutOfRange, index.String(), t.Height)
	}
	return nil
}

// GetLeaf returns the leaf at index. Leaves under an empty subtree are L.Empty().
func (t Tree[L]) GetLeaf(ctx context.Context, ffc *fact.Context, index *felt.Felt) (L, error) {
	leaves, err := t.GetLeaves(ctx, ffc, []felt.Felt{*index}, nil)
	if err != nil {
		var zero L
		return zero, err
	}
	return leaves[*index], nil
}

// GetLeaves returns the leaves at all indices. Inner nodes are read breadth first with one
// batched storage read per level, then all leaves in one more. Fetched preimages are added to
// facts, which may be nil.
func (t Tree[L]) GetLeaves(ctx context.Context, ffc *fact.Context, indices []felt.Felt,
	facts *Facts,
) (map[felt.Felt]L, error) {
	if t.Height > MaxHeight {
		return nil, ErrInvalidHeight
	}
	keys := make([]Path, len(indices))
	for i := range indices {
		if err := t.checkIndex(&indices[i]); err != nil {
			return nil, err
		}
		keys[i] = NewPath(&indices[i], t.Height)
	}

	r := newReader(ffc, facts)
	root := t.root()
	if err := r.prefetch(ctx, root, keys); err != nil {
		return nil, err
	}

	var zero L
	bucket := zero.Bucket()
	leafHashes := make(map[felt.Felt]felt.Felt, len(indices))
	var leafKeys [][]byte
	requested := make(map[felt.Felt]struct{})
	for i, index := range indices {
		hash, err := r.leafHash(ctx, root, keys[i])
		if err != nil {
			return nil, err
		}
		leafHashes[index] = hash
		if _, ok := requested[hash]; !ok && !hash.IsZero() {
			requested[hash] = struct{}{}
			leafKeys = append(leafKeys, fact.Key(bucket, &hash))
		}
	}

	var stored map[string][]byte
	if len(leafKeys) > 0 {
		var err error
		if stored, err = ffc.GetMany(ctx, leafKeys); err != nil {
			return nil, err
		}
		readRounds.Inc()
	}

	leaves := make(map[felt.Felt]L, len(leafHashes))
	for index, hash := range leafHashes {
		if hash.IsZero() {
			leaves[index] = zero.Empty()
			continue
		}
		data, ok := stored[string(fact.Key(bucket, &hash))]
		if !ok {
			return nil, &fact.MissingFactError{Bucket: bucket, Hash: hash}
		}
		leaf, err := fact.DecodeLeaf[L](bucket, &hash, data)
		if err != nil {
			return nil, err
		}
		leaves[index] = leaf
	}
	return leaves, nil
}

type leafUpdate struct {
	key  Path
	hash felt.Felt
}

// Update sets every modified index to its new leaf and returns the resulting tree. Only the
// paths leading to modified indices are rewritten. Nothing is written unless the whole update
// succeeds, in which case all new facts go to storage in a single batch. The order of
// modifications does not affect the result.
func (t Tree[L]) Update(ctx context.Context, ffc *fact.Context, modifications []Modification[L],
	facts *Facts,
) (Tree[L], error) {
	if t.Height > MaxHeight {
		return t, ErrInvalidHeight
	}
	if len(modifications) == 0 {
		return t, nil
	}

	sorted := slices.Clone(modifications)
	slices.SortFunc(sorted, func(a, b Modification[L]) int {
		return a.Index.Cmp(&b.Index)
	})
	for i := range sorted {
		if err := t.checkIndex(&sorted[i].Index); err != nil {
			return t, err
		}
		if i > 0 && sorted[i].Index.Equal(&sorted[i-1].Index) {
			return t, fmt.Errorf("%w: %s", ErrDuplicateIndex, sorted[i].Index.String())
		}
	}

	entries := make(map[string][]byte)
	updates := make([]leafUpdate, len(sorted))
	keys := make([]Path, len(sorted))
	for i, m := range sorted {
		keys[i] = NewPath(&m.Index, t.Height)
		updates[i].key = keys[i]
		if m.Leaf.IsEmpty() {
			continue
		}
		hash, err := ffc.Entry(entries, m.Leaf)
		if err != nil {
			return t, err
		}
		updates[i].hash = *hash
	}

	r := newReader(ffc, facts)
	root := t.root()
	if err := r.prefetch(ctx, root, keys); err != nil {
		return t, err
	}

	b := &builder{reader: r, entries: entries}
	newRoot, err := b.update(ctx, root, updates)
	if err != nil {
		return t, err
	}
	rootHash, err := b.commit(newRoot)
	if err != nil {
		return t, err
	}

	if err = ffc.PutMany(ctx, entries); err != nil {
		return t, err
	}
	factsWritten.Add(float64(len(entries)))
	return Tree[L]{Root: rootHash, Height: t.Height}, nil
}

type builder struct {
	*reader
	entries map[string][]byte
}

func (b *builder) update(ctx context.Context, v virtualNode, updates []leafUpdate) (virtualNode, error) {
	if len(updates) == 0 {
		return v, nil
	}
	if v.height == 0 {
		return virtualNode{bottom: updates[0].hash}, nil
	}

	left, right, err := b.children(ctx, v)
	if err != nil {
		return virtualNode{}, err
	}
	// updates are sorted and share every bit above this node, so the next bit is monotone
	bit := v.height - 1
	mid := sort.Search(len(updates), func(i int) bool {
		return updates[i].key.Test(bit)
	})

	if left, err = b.update(ctx, left, updates[:mid]); err != nil {
		return virtualNode{}, err
	}
	if right, err = b.update(ctx, right, updates[mid:]); err != nil {
		return virtualNode{}, err
	}
	return b.combine(ctx, left, right, v.height)
}

func (b *builder) combine(ctx context.Context, left, right virtualNode, height uint8) (virtualNode, error) {
	switch {
	case left.isEmpty() && right.isEmpty():
		return virtualNode{height: height}, nil
	case left.isEmpty():
		return b.lift(ctx, right, true, height)
	case right.isEmpty():
		return b.lift(ctx, left, false, height)
	}

	leftHash, err := b.commit(left)
	if err != nil {
		return virtualNode{}, err
	}
	rightHash, err := b.commit(right)
	if err != nil {
		return virtualNode{}, err
	}
	bottom, err := b.store(binaryNode{left: leftHash, right: rightHash})
	if err != nil {
		return virtualNode{}, err
	}
	return virtualNode{bottom: bottom, height: height}, nil
}

// lift makes child the only non-empty child of a node at height. A child that is itself stored
// as an edge node is merged into the new edge, so no edge ever sits directly below another.
func (b *builder) lift(ctx context.Context, child virtualNode, bit bool, height uint8) (virtualNode, error) {
	if child.path.Len() == 0 && child.height > 0 {
		n, err := b.preimage(ctx, &child.bottom)
		if err != nil {
			return virtualNode{}, err
		}
		if edge, ok := n.(edgeNode); ok {
			if err = checkEdge(&child.bottom, edge, child.height); err != nil {
				return virtualNode{}, err
			}
			child = virtualNode{bottom: edge.bottom, path: edge.path, height: child.height}
		}
	}
	return virtualNode{bottom: child.bottom, path: child.path.Prepend(bit), height: height}, nil
}

// commit returns the hash of v, storing an edge node if v has a path.
func (b *builder) commit(v virtualNode) (felt.Felt, error) {
	if v.path.Len() == 0 {
		return v.bottom, nil
	}
	return b.store(edgeNode{bottom: v.bottom, path: v.path})
}

func (b *builder) store(n node) (felt.Felt, error) {
	hash, err := b.ffc.Entry(b.entries, n)
	if err != nil {
		return felt.Zero, err
	}
	b.facts.add(hash, n)
	return *hash, nil
}

func bitLen(f *felt.Felt) int {
	return f.BigInt(new(big.Int)).BitLen()
}
