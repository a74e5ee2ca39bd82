// Package state maintains the StarkNet global state commitment: a contract tree whose leaves
// are contract states, each carrying its own storage tree, and a class tree of compiled class
// hashes. Both trees are combined into the global root.
package state

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/trie"
	"github.com/NethermindEth/stark-state/utils"
)

const (
	// ContractAddressBits is the height of the contract tree.
	ContractAddressBits = trie.MaxHeight
	// ContractClassBits is the height of the class tree.
	ContractClassBits = trie.MaxHeight
	// StorageBits is the height of every contract storage tree.
	StorageBits = trie.MaxHeight
)

// stateVersion is felt("STARKNET_STATE_V0").
var stateVersion = felt.FromBytes([]byte("STARKNET_STATE_V0"))

// SharedState is a snapshot of the global state. Snapshots are never modified;
// ApplyStateUpdates returns a new one.
type SharedState struct {
	ContractStates trie.Tree[ContractState]
	// ContractClasses is nil for states created before the class tree existed.
	ContractClasses *trie.Tree[ContractClassLeaf]
	BlockInfo       BlockInfo

	cfg *config
}

// New wraps existing trees in a SharedState.
func New(contractStates trie.Tree[ContractState], contractClasses *trie.Tree[ContractClassLeaf],
	blockInfo BlockInfo, opts ...Option,
) *SharedState {
	return &SharedState{
		ContractStates:  contractStates,
		ContractClasses: contractClasses,
		BlockInfo:       blockInfo,
		cfg:             newConfig(opts),
	}
}

// Empty returns the state before the first block: an empty contract tree and an empty class tree.
func Empty(ctx context.Context, ffc *fact.Context, blockInfo BlockInfo, opts ...Option) (*SharedState, error) {
	s := New(trie.Tree[ContractState]{}, nil, blockInfo, opts...)

	contractStates, err := trie.EmptyTree(ctx, ffc, ContractAddressBits, EmptyContractState())
	if err != nil {
		return nil, fmt.Errorf("create contract tree: %w", err)
	}
	contractClasses, err := s.ContractClassTree(ctx, ffc)
	if err != nil {
		return nil, err
	}

	s.ContractStates = contractStates
	s.ContractClasses = &contractClasses
	return s, nil
}

// FromDiff applies diff to an empty state.
func FromDiff(ctx context.Context, ffc *fact.Context, diff *Diff, blockInfo BlockInfo,
	opts ...Option,
) (*SharedState, error) {
	empty, err := Empty(ctx, ffc, blockInfo, opts...)
	if err != nil {
		return nil, err
	}
	return empty.ApplyStateUpdates(ctx, ffc, diff, blockInfo)
}

func (s *SharedState) config() *config {
	if s.cfg == nil {
		return defaultConfig()
	}
	return s.cfg
}

// classFFC returns a context hashing class tree nodes.
func (s *SharedState) classFFC(ffc *fact.Context) *fact.Context {
	return ffc.WithHash(s.config().classHash)
}

// ContractClassTree returns the class tree, or an empty one if the state has none.
func (s *SharedState) ContractClassTree(ctx context.Context, ffc *fact.Context) (trie.Tree[ContractClassLeaf], error) {
	if s.ContractClasses != nil {
		return *s.ContractClasses, nil
	}
	tree, err := trie.EmptyTree(ctx, s.classFFC(ffc), ContractClassBits, ContractClassLeaf{})
	if err != nil {
		return trie.Tree[ContractClassLeaf]{}, fmt.Errorf("create class tree: %w", err)
	}
	return tree, nil
}

// ClassesRoot returns the class tree root, zero when there is no class tree.
func (s *SharedState) ClassesRoot() felt.Felt {
	if s.ContractClasses == nil {
		return trie.EmptyNodeHash
	}
	return s.ContractClasses.Root
}

// GlobalRoot commits to both trees. A state without classes keeps the contract tree root as its
// global root.
func (s *SharedState) GlobalRoot() felt.Felt {
	statesRoot := s.ContractStates.Root
	classesRoot := s.ClassesRoot()

	switch {
	case statesRoot.IsZero() && classesRoot.IsZero():
		return felt.Zero
	case classesRoot.IsZero():
		return statesRoot
	default:
		return *s.config().globalHash(stateVersion, &statesRoot, &classesRoot)
	}
}

type contractUpdate struct {
	address felt.Felt
	state   ContractState
}

// ApplyStateUpdates returns the state after diff. All contract states touched by diff are read
// in one batched lookup, each storage tree is updated, then the contract tree and the class tree
// are each updated once. A nil diff is the empty diff. The receiver is left unchanged.
func (s *SharedState) ApplyStateUpdates(ctx context.Context, ffc *fact.Context, diff *Diff,
	blockInfo BlockInfo,
) (*SharedState, error) {
	if diff == nil {
		diff = NewDiff()
	}
	cfg := s.config()
	if s.ContractClasses == nil && len(diff.CompiledClassHashes) > 0 {
		return nil, ErrClassTreeAbsent
	}

	addresses := diff.addresses()
	facts := trie.NewFacts()
	current, err := s.ContractStates.GetLeaves(ctx, ffc, addresses, facts)
	if err != nil {
		return nil, fmt.Errorf("read contract states: %w", err)
	}

	updated, err := s.updateContracts(ctx, ffc, diff, addresses, current, facts)
	if err != nil {
		return nil, err
	}

	cfg.log.Debugw("Updating contract state tree", "modifications", len(updated))
	contractStates, err := s.ContractStates.Update(ctx, ffc, updated, facts)
	if err != nil {
		return nil, fmt.Errorf("update contract tree: %w", err)
	}

	var contractClasses *trie.Tree[ContractClassLeaf]
	if s.ContractClasses != nil {
		classHashes := sortedFelts(diff.CompiledClassHashes)
		modifications := make([]trie.Modification[ContractClassLeaf], len(classHashes))
		for i, classHash := range classHashes {
			modifications[i] = trie.Modification[ContractClassLeaf]{
				Index: classHash,
				Leaf:  ContractClassLeaf{CompiledClassHash: diff.CompiledClassHashes[classHash]},
			}
		}

		cfg.log.Debugw("Updating contract class tree", "modifications", len(modifications))
		tree, err := s.ContractClasses.Update(ctx, s.classFFC(ffc), modifications, facts)
		if err != nil {
			return nil, fmt.Errorf("update class tree: %w", err)
		}
		contractClasses = &tree
	}

	return &SharedState{
		ContractStates:  contractStates,
		ContractClasses: contractClasses,
		BlockInfo:       blockInfo,
		cfg:             s.cfg,
	}, nil
}

func (s *SharedState) updateContracts(ctx context.Context, ffc *fact.Context, diff *Diff,
	addresses []felt.Felt, current map[felt.Felt]ContractState, facts *trie.Facts,
) ([]trie.Modification[ContractState], error) {
	update := func(ctx context.Context, address felt.Felt) (contractUpdate, error) {
		var nonce, classHash *felt.Felt
		if n, ok := diff.Nonces[address]; ok {
			nonce = &n
		}
		if c, ok := diff.ClassHashes[address]; ok {
			classHash = &c
		}
		contract, err := current[address].Update(ctx, ffc, diff.StorageUpdates[address], nonce, classHash, facts)
		if err != nil {
			return contractUpdate{}, fmt.Errorf("update contract %s: %w", address.String(), err)
		}
		return contractUpdate{address: address, state: contract}, nil
	}

	var results []contractUpdate
	if concurrency := s.config().concurrency; concurrency > 1 && len(addresses) > 1 {
		p := pool.NewWithResults[contractUpdate]().
			WithContext(ctx).
			WithMaxGoroutines(concurrency).
			WithCancelOnError().
			WithFirstError()
		for _, address := range addresses {
			p.Go(func(ctx context.Context) (contractUpdate, error) {
				return update(ctx, address)
			})
		}
		var err error
		if results, err = p.Wait(); err != nil {
			return nil, err
		}
	} else {
		results = make([]contractUpdate, 0, len(addresses))
		for _, address := range addresses {
			result, err := update(ctx, address)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
	}

	modifications := make([]trie.Modification[ContractState], len(results))
	for i, result := range results {
		modifications[i] = trie.Modification[ContractState]{Index: result.address, Leaf: result.state}
	}
	return modifications, nil
}

func sortedFelts[V any](m map[felt.Felt]V) []felt.Felt {
	return utils.SortedKeys(m, utils.CompareFelts)
}
