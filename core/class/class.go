// Package class describes declared contract classes as seen by the state commitment.
package class

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NethermindEth/stark-state/core/felt"
)

var ErrUnknownKind = errors.New("unknown class kind")

// Kind tags the variant held by Compiled.
type Kind uint8

const (
	// Deprecated classes are Cairo 0 classes. They have no compiled class hash and no leaf in
	// the class tree.
	Deprecated Kind = iota
	// Sierra classes are committed to the class tree through their compiled class hash.
	Sierra
)

func (k Kind) String() string {
	switch k {
	case Deprecated:
		return "deprecated"
	case Sierra:
		return "sierra"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k > Sierra {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "deprecated":
		*k = Deprecated
	case "sierra":
		*k = Sierra
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return nil
}

// Compiled is a declared class. CompiledClassHash is only meaningful for Sierra classes.
type Compiled struct {
	Kind              Kind      `json:"kind"`
	ClassHash         felt.Felt `json:"class_hash"`
	CompiledClassHash felt.Felt `json:"compiled_class_hash"`
}

func NewDeprecated(classHash *felt.Felt) Compiled {
	return Compiled{Kind: Deprecated, ClassHash: *classHash}
}

func NewSierra(classHash, compiledClassHash *felt.Felt) Compiled {
	return Compiled{Kind: Sierra, ClassHash: *classHash, CompiledClassHash: *compiledClassHash}
}

// Committed reports whether the class has a leaf in the class tree.
func (c *Compiled) Committed() bool {
	return c.Kind == Sierra
}
