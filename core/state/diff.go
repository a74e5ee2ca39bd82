package state

import "github.com/NethermindEth/stark-state/core/felt"

// Diff is the set of state changes applied as one block.
type Diff struct {
	// ClassHashes maps contract addresses to their new class hash.
	ClassHashes map[felt.Felt]felt.Felt `json:"class_hashes"`
	// Nonces maps contract addresses to their new nonce.
	Nonces map[felt.Felt]felt.Felt `json:"nonces"`
	// CompiledClassHashes maps class hashes to their compiled class hash.
	CompiledClassHashes map[felt.Felt]felt.Felt `json:"compiled_class_hashes"`
	// StorageUpdates maps contract addresses to the storage slots they write.
	StorageUpdates map[felt.Felt]map[felt.Felt]felt.Felt `json:"storage_updates"`
}

func NewDiff() *Diff {
	return &Diff{
		ClassHashes:         make(map[felt.Felt]felt.Felt),
		Nonces:              make(map[felt.Felt]felt.Felt),
		CompiledClassHashes: make(map[felt.Felt]felt.Felt),
		StorageUpdates:      make(map[felt.Felt]map[felt.Felt]felt.Felt),
	}
}

func (d *Diff) IsEmpty() bool {
	return len(d.ClassHashes) == 0 && len(d.Nonces) == 0 && len(d.CompiledClassHashes) == 0 &&
		len(d.StorageUpdates) == 0
}

// addresses returns every contract address touched by d.
func (d *Diff) addresses() []felt.Felt {
	seen := make(map[felt.Felt]struct{}, len(d.StorageUpdates)+len(d.ClassHashes)+len(d.Nonces))
	for addr := range d.ClassHashes {
		seen[addr] = struct{}{}
	}
	for addr := range d.Nonces {
		seen[addr] = struct{}{}
	}
	for addr := range d.StorageUpdates {
		seen[addr] = struct{}{}
	}
	return sortedFelts(seen)
}
