package crypto

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/stark-state/core/felt"
)

// HashFunc combines two field elements into one. Tree node hashing is parameterised by it.
type HashFunc func(*felt.Felt, *felt.Felt) *felt.Felt

// ArrayHashFunc hashes a variable number of field elements.
type ArrayHashFunc func(...*felt.Felt) *felt.Felt

var ErrUnknownHash = errors.New("unknown hash function")

// ByName resolves "pedersen" or "poseidon" to the matching pair of hash functions.
func ByName(name string) (HashFunc, ArrayHashFunc, error) {
	switch name {
	case "pedersen":
		return Pedersen, PedersenArray, nil
	case "poseidon":
		return Poseidon, PoseidonArray, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownHash, name)
	}
}
