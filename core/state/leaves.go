package state

import (
	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
)

var (
	_ fact.Leaf[StorageLeaf]       = StorageLeaf{}
	_ fact.Leaf[ContractClassLeaf] = ContractClassLeaf{}
	_ fact.Leaf[ContractState]     = ContractState{}
)

// StorageLeaf is one contract storage value. A storage leaf hashes to its value.
type StorageLeaf struct {
	Value felt.Felt
}

func (StorageLeaf) Bucket() db.Bucket {
	return db.StorageLeaf
}

func (l StorageLeaf) Hash(crypto.HashFunc) *felt.Felt {
	return &l.Value
}

func (l StorageLeaf) MarshalBinary() ([]byte, error) {
	return l.Value.Marshal(), nil
}

func (l StorageLeaf) IsEmpty() bool {
	return l.Value.IsZero()
}

func (StorageLeaf) Empty() StorageLeaf {
	return StorageLeaf{}
}

func (StorageLeaf) Decode(data []byte) (StorageLeaf, error) {
	var l StorageLeaf
	if err := l.Value.SetBytesCanonical(data); err != nil {
		return StorageLeaf{}, err
	}
	return l, nil
}

// contractClassLeafVersion is felt("CONTRACT_CLASS_LEAF_V0").
var contractClassLeafVersion = felt.FromBytes([]byte("CONTRACT_CLASS_LEAF_V0"))

// ContractClassLeaf commits to the compiled class hash of a declared class.
type ContractClassLeaf struct {
	CompiledClassHash felt.Felt
}

func (ContractClassLeaf) Bucket() db.Bucket {
	return db.ContractClassLeaf
}

// Hash is H(CONTRACT_CLASS_LEAF_V0, compiled class hash), or zero for the empty leaf.
func (l ContractClassLeaf) Hash(hash crypto.HashFunc) *felt.Felt {
	if l.IsEmpty() {
		return new(felt.Felt)
	}
	return hash(contractClassLeafVersion, &l.CompiledClassHash)
}

func (l ContractClassLeaf) MarshalBinary() ([]byte, error) {
	return l.CompiledClassHash.Marshal(), nil
}

func (l ContractClassLeaf) IsEmpty() bool {
	return l.CompiledClassHash.IsZero()
}

func (ContractClassLeaf) Empty() ContractClassLeaf {
	return ContractClassLeaf{}
}

func (ContractClassLeaf) Decode(data []byte) (ContractClassLeaf, error) {
	var l ContractClassLeaf
	if err := l.CompiledClassHash.SetBytesCanonical(data); err != nil {
		return ContractClassLeaf{}, err
	}
	return l, nil
}
