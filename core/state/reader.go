package state

import (
	"context"
	"errors"

	"github.com/NethermindEth/stark-state/core/class"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/utils"
)

// Reader reads values out of a state. Slots that were never written read as zero.
type Reader interface {
	StorageAt(ctx context.Context, address, key *felt.Felt) (felt.Felt, error)
	NonceAt(ctx context.Context, address *felt.Felt) (felt.Felt, error)
	ClassHashAt(ctx context.Context, address *felt.Felt) (felt.Felt, error)
	CompiledClassHash(ctx context.Context, classHash *felt.Felt) (felt.Felt, error)
}

var _ Reader = (*StateReader)(nil)

// StateReader reads a SharedState snapshot through a fact context.
type StateReader struct {
	state *SharedState
	ffc   *fact.Context
}

func NewStateReader(state *SharedState, ffc *fact.Context) *StateReader {
	return &StateReader{state: state, ffc: ffc}
}

func (r *StateReader) contract(ctx context.Context, address *felt.Felt) (ContractState, error) {
	return r.state.ContractStates.GetLeaf(ctx, r.ffc, address)
}

func (r *StateReader) StorageAt(ctx context.Context, address, key *felt.Felt) (felt.Felt, error) {
	contract, err := r.contract(ctx, address)
	if err != nil {
		return felt.Zero, err
	}
	leaf, err := contract.StorageTree.GetLeaf(ctx, r.ffc, key)
	if err != nil {
		return felt.Zero, err
	}
	return leaf.Value, nil
}

func (r *StateReader) NonceAt(ctx context.Context, address *felt.Felt) (felt.Felt, error) {
	contract, err := r.contract(ctx, address)
	if err != nil {
		return felt.Zero, err
	}
	return contract.Nonce, nil
}

func (r *StateReader) ClassHashAt(ctx context.Context, address *felt.Felt) (felt.Felt, error) {
	contract, err := r.contract(ctx, address)
	if err != nil {
		return felt.Zero, err
	}
	return contract.ClassHash, nil
}

// CompiledClassHash is zero for undeclared classes, deprecated classes, and states without a
// class tree.
func (r *StateReader) CompiledClassHash(ctx context.Context, classHash *felt.Felt) (felt.Felt, error) {
	if r.state.ContractClasses == nil {
		return felt.Zero, nil
	}
	leaf, err := r.state.ContractClasses.GetLeaf(ctx, r.state.classFFC(r.ffc), classHash)
	if err != nil {
		return felt.Zero, err
	}
	return leaf.CompiledClassHash, nil
}

// CompiledClass returns the class declared under classHash, reporting it as deprecated when
// no compiled class hash is committed for it.
func CompiledClass(ctx context.Context, r Reader, classHash *felt.Felt) (class.Compiled, error) {
	compiledClassHash, err := r.CompiledClassHash(ctx, classHash)
	if err != nil {
		return class.Compiled{}, err
	}
	if compiledClassHash.IsZero() {
		return class.NewDeprecated(classHash), nil
	}
	return class.NewSierra(classHash, &compiledClassHash), nil
}

// FallbackReader serves reads from local and turns to remote for facts local does not have.
// Any other error is returned as is.
type FallbackReader struct {
	local  Reader
	remote Reader
	log    utils.SimpleLogger
}

var _ Reader = (*FallbackReader)(nil)

func NewFallbackReader(local, remote Reader, log utils.SimpleLogger) *FallbackReader {
	return &FallbackReader{local: local, remote: remote, log: log}
}

func (r *FallbackReader) read(what string, local, remote func() (felt.Felt, error)) (felt.Felt, error) {
	value, err := local()
	if err == nil || !errors.Is(err, db.ErrKeyNotFound) {
		return value, err
	}
	r.log.Debugw("Local state is missing facts, reading remote", "read", what, "err", err)
	return remote()
}

func (r *FallbackReader) StorageAt(ctx context.Context, address, key *felt.Felt) (felt.Felt, error) {
	return r.read("storage",
		func() (felt.Felt, error) { return r.local.StorageAt(ctx, address, key) },
		func() (felt.Felt, error) { return r.remote.StorageAt(ctx, address, key) })
}

func (r *FallbackReader) NonceAt(ctx context.Context, address *felt.Felt) (felt.Felt, error) {
	return r.read("nonce",
		func() (felt.Felt, error) { return r.local.NonceAt(ctx, address) },
		func() (felt.Felt, error) { return r.remote.NonceAt(ctx, address) })
}

func (r *FallbackReader) ClassHashAt(ctx context.Context, address *felt.Felt) (felt.Felt, error) {
	return r.read("class hash",
		func() (felt.Felt, error) { return r.local.ClassHashAt(ctx, address) },
		func() (felt.Felt, error) { return r.remote.ClassHashAt(ctx, address) })
}

func (r *FallbackReader) CompiledClassHash(ctx context.Context, classHash *felt.Felt) (felt.Felt, error) {
	return r.read("compiled class hash",
		func() (felt.Felt, error) { return r.local.CompiledClassHash(ctx, classHash) },
		func() (felt.Felt, error) { return r.remote.CompiledClassHash(ctx, classHash) })
}

// SyncReader binds a context to a Reader for callers that cannot pass one, such as an
// execution engine reading state from callbacks.
type SyncReader struct {
	ctx context.Context
	r   Reader
}

func NewSyncReader(ctx context.Context, r Reader) *SyncReader {
	return &SyncReader{ctx: ctx, r: r}
}

func (s *SyncReader) StorageAt(address, key *felt.Felt) (felt.Felt, error) {
	return s.r.StorageAt(s.ctx, address, key)
}

func (s *SyncReader) NonceAt(address *felt.Felt) (felt.Felt, error) {
	return s.r.NonceAt(s.ctx, address)
}

func (s *SyncReader) ClassHashAt(address *felt.Felt) (felt.Felt, error) {
	return s.r.ClassHashAt(s.ctx, address)
}

func (s *SyncReader) CompiledClassHash(classHash *felt.Felt) (felt.Felt, error) {
	return s.r.CompiledClassHash(s.ctx, classHash)
}

func (s *SyncReader) CompiledClass(classHash *felt.Felt) (class.Compiled, error) {
	return CompiledClass(s.ctx, s.r, classHash)
}
