package state

import (
	"context"
	"fmt"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/trie"
	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/encoder"
)

// contractStateVersion is hashed in last.
var contractStateVersion felt.Felt

// ContractState is the leaf of the global contract tree: a contract's class, storage and nonce.
// It is an immutable value; Update returns a new one.
type ContractState struct {
	ClassHash   felt.Felt
	StorageTree trie.Tree[StorageLeaf]
	Nonce       felt.Felt
}

// EmptyContractState is the state of an address nothing was ever deployed to.
func EmptyContractState() ContractState {
	return ContractState{StorageTree: trie.Tree[StorageLeaf]{Height: trie.MaxHeight}}
}

func (ContractState) Bucket() db.Bucket {
	return db.ContractState
}

// Hash is H(H(H(class hash, storage root), nonce), 0), or zero for the empty state.
func (c ContractState) Hash(hash crypto.HashFunc) *felt.Felt {
	if c.IsEmpty() {
		return new(felt.Felt)
	}
	h := hash(&c.ClassHash, &c.StorageTree.Root)
	h = hash(h, &c.Nonce)
	return hash(h, &contractStateVersion)
}

func (c ContractState) IsEmpty() bool {
	return c.StorageTree.IsEmpty() && c.ClassHash.IsZero() && c.Nonce.IsZero()
}

func (ContractState) Empty() ContractState {
	return EmptyContractState()
}

type contractStateRecord struct {
	_           struct{} `cbor:",toarray"`
	ClassHash   felt.Felt
	StorageRoot felt.Felt
	Height      uint8
	Nonce       felt.Felt
}

func (c ContractState) MarshalBinary() ([]byte, error) {
	return encoder.Marshal(contractStateRecord{
		ClassHash:   c.ClassHash,
		StorageRoot: c.StorageTree.Root,
		Height:      c.StorageTree.Height,
		Nonce:       c.Nonce,
	})
}

func (ContractState) Decode(data []byte) (ContractState, error) {
	var record contractStateRecord
	if err := encoder.Unmarshal(data, &record); err != nil {
		return ContractState{}, err
	}
	if record.Height > trie.MaxHeight {
		return ContractState{}, fmt.Errorf("%w: storage height %d", trie.ErrInvalidHeight, record.Height)
	}
	return ContractState{
		ClassHash:   record.ClassHash,
		StorageTree: trie.Tree[StorageLeaf]{Root: record.StorageRoot, Height: record.Height},
		Nonce:       record.Nonce,
	}, nil
}

// Update applies storageUpdates as one batched tree update. A nil nonce or class hash keeps the
// current value.
func (c ContractState) Update(ctx context.Context, ffc *fact.Context, storageUpdates map[felt.Felt]felt.Felt,
	nonce, classHash *felt.Felt, facts *trie.Facts,
) (ContractState, error) {
	modifications := make([]trie.Modification[StorageLeaf], 0, len(storageUpdates))
	for key, value := range storageUpdates {
		modifications = append(modifications, trie.Modification[StorageLeaf]{
			Index: key,
			Leaf:  StorageLeaf{Value: value},
		})
	}

	storageTree, err := c.StorageTree.Update(ctx, ffc, modifications, facts)
	if err != nil {
		return c, err
	}

	updated := ContractState{ClassHash: c.ClassHash, StorageTree: storageTree, Nonce: c.Nonce}
	if nonce != nil {
		updated.Nonce = *nonce
	}
	if classHash != nil {
		updated.ClassHash = *classHash
	}
	return updated, nil
}
