package crypto

import "github.com/NethermindEth/stark-state/core/felt"

// Digest accumulates felts and produces an array hash.
type Digest interface {
	Update(...*felt.Felt) Digest
	Finish() *felt.Felt
}
