package state

import (
	"context"
	"fmt"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/trie"
	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/encoder"
)

var latestHeaderKey = db.StateHeader.Key([]byte("latest"))

// Header is the persisted pointer to a committed state: the tree roots and the block info.
type Header struct {
	_                  struct{} `cbor:",toarray"`
	ContractStatesRoot felt.Felt
	HasClassTree       bool
	ClassesRoot        felt.Felt
	BlockInfo          BlockInfo
}

func (s *SharedState) Header() Header {
	return Header{
		ContractStatesRoot: s.ContractStates.Root,
		HasClassTree:       s.ContractClasses != nil,
		ClassesRoot:        s.ClassesRoot(),
		BlockInfo:          s.BlockInfo,
	}
}

// FromHeader restores the state a header points to. The trees themselves are read lazily.
func FromHeader(h *Header, opts ...Option) *SharedState {
	var contractClasses *trie.Tree[ContractClassLeaf]
	if h.HasClassTree {
		contractClasses = &trie.Tree[ContractClassLeaf]{Root: h.ClassesRoot, Height: ContractClassBits}
	}
	return New(trie.Tree[ContractState]{Root: h.ContractStatesRoot, Height: ContractAddressBits},
		contractClasses, h.BlockInfo, opts...)
}

// StoreHeader records s as the latest committed state.
func StoreHeader(ctx context.Context, storage db.Storage, s *SharedState) error {
	data, err := encoder.Marshal(s.Header())
	if err != nil {
		return err
	}
	return storage.Put(ctx, latestHeaderKey, data)
}

// LoadHeader returns the latest committed header, or db.ErrKeyNotFound if nothing was committed.
func LoadHeader(ctx context.Context, storage db.Storage) (*Header, error) {
	data, err := storage.Get(ctx, latestHeaderKey)
	if err != nil {
		return nil, err
	}
	h := new(Header)
	if err = encoder.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("decode state header: %w", err)
	}
	return h, nil
}
