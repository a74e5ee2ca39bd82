package state

import "github.com/NethermindEth/stark-state/core/felt"

// BlockInfo is the block context a state was produced in. It is carried alongside the roots and
// never hashed into them.
type BlockInfo struct {
	_                struct{}  `cbor:",toarray"`
	BlockNumber      uint64    `json:"block_number"`
	BlockTimestamp   uint64    `json:"block_timestamp"`
	SequencerAddress felt.Felt `json:"sequencer_address"`
	UseKZGDA         bool      `json:"use_kzg_da"`
}

// EmptyBlockInfo is the block info of a state before any block was applied.
func EmptyBlockInfo(sequencerAddress *felt.Felt, useKZGDA bool) BlockInfo {
	return BlockInfo{SequencerAddress: *sequencerAddress, UseKZGDA: useKZGDA}
}
