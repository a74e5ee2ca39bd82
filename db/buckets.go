package db

import (
	"bytes"
	"strconv"
)

// Bucket is a key prefix separating the fact kinds that share one key space.
type Bucket byte

const (
	PatriciaNode      Bucket = iota // binary and edge node preimages
	StorageLeaf                     // contract storage values
	ContractState                   // contract leaves of the global tree
	ContractClassLeaf               // compiled class hash leaves of the class tree
	StateHeader                     // latest committed roots, keyed by name
)

var bucketNames = [...]string{
	PatriciaNode:      "PatriciaNode",
	StorageLeaf:       "StorageLeaf",
	ContractState:     "ContractState",
	ContractClassLeaf: "ContractClassLeaf",
	StateHeader:       "StateHeader",
}

func (b Bucket) String() string {
	if int(b) < len(bucketNames) {
		return bucketNames[b]
	}
	return "Bucket(" + strconv.Itoa(int(b)) + ")"
}

// ContentAddressed reports whether keys in b end in the hash of their value, so a value once
// written never changes.
func (b Bucket) ContentAddressed() bool {
	switch b {
	case PatriciaNode, StorageLeaf, ContractState, ContractClassLeaf:
		return true
	default:
		return false
	}
}

// Key flattens a prefix and series of byte arrays into a single []byte.
func (b Bucket) Key(key ...[]byte) []byte {
	return append([]byte{byte(b)}, bytes.Join(key, nil)...)
}
