package fact

import (
	"fmt"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
)

// StorageError is returned when the storage backend fails.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when stored bytes cannot be parsed as the expected fact.
type DecodeError struct {
	Bucket db.Bucket
	Hash   felt.Felt
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s fact %s: %v", e.Bucket, e.Hash.String(), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MissingFactError is returned when a referenced hash has no preimage in storage.
type MissingFactError struct {
	Bucket db.Bucket
	Hash   felt.Felt
}

func (e *MissingFactError) Error() string {
	return fmt.Sprintf("missing %s fact %s", e.Bucket, e.Hash.String())
}

func (e *MissingFactError) Is(target error) bool {
	return target == db.ErrKeyNotFound
}
