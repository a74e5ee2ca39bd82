// Package vm holds the write sets the execution engine reports for each transaction.
package vm

import (
	"errors"

	"github.com/NethermindEth/stark-state/core/felt"
)

type StateDiff struct {
	StorageDiffs              []StorageDiff           `json:"storage_diffs"`
	Nonces                    []Nonce                 `json:"nonces"`
	DeployedContracts         []DeployedContract      `json:"deployed_contracts"`
	DeprecatedDeclaredClasses []*felt.ClassHash       `json:"deprecated_declared_classes"`
	DeclaredClasses           []DeclaredClass         `json:"declared_classes"`
	ReplacedClasses           []ReplacedClass         `json:"replaced_classes"`
	MigratedCompiledClasses   []MigratedCompiledClass `json:"migrated_compiled_classes"`
}

type MigratedCompiledClass struct {
	ClassHash         felt.ClassHash     `json:"class_hash"`
	CompiledClassHash felt.CasmClassHash `json:"compiled_class_hash"`
}

type Nonce struct {
	ContractAddress felt.Address `json:"contract_address"`
	Nonce           felt.Felt    `json:"nonce"`
}

type StorageDiff struct {
	Address        felt.Address `json:"address"`
	StorageEntries []Entry      `json:"storage_entries"`
}

type Entry struct {
	Key   felt.StorageKey `json:"key"`
	Value felt.Felt       `json:"value"`
}

type DeployedContract struct {
	Address   felt.Address   `json:"address"`
	ClassHash felt.ClassHash `json:"class_hash"`
}

type ReplacedClass struct {
	ContractAddress felt.Address   `json:"contract_address"`
	ClassHash       felt.ClassHash `json:"class_hash"`
}

type DeclaredClass struct {
	ClassHash         felt.ClassHash     `json:"class_hash"`
	CompiledClassHash felt.CasmClassHash `json:"compiled_class_hash"`
}

type TransactionType uint8

const (
	Invalid TransactionType = iota
	TxnDeclare
	TxnDeploy
	TxnDeployAccount
	TxnInvoke
	TxnL1Handler
)

func (t TransactionType) String() string {
	switch t {
	case TxnDeclare:
		return "DECLARE"
	case TxnDeploy:
		return "DEPLOY"
	case TxnDeployAccount:
		return "DEPLOY_ACCOUNT"
	case TxnInvoke:
		return "INVOKE"
	case TxnL1Handler:
		return "L1_HANDLER"
	default:
		return "<unknown>"
	}
}

func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"DECLARE"`:
		*t = TxnDeclare
	case `"DEPLOY"`:
		*t = TxnDeploy
	case `"DEPLOY_ACCOUNT"`:
		*t = TxnDeployAccount
	case `"INVOKE"`, `"INVOKE_FUNCTION"`:
		*t = TxnInvoke
	case `"L1_HANDLER"`:
		*t = TxnL1Handler
	default:
		return errors.New("unknown TransactionType")
	}
	return nil
}

// TransactionTrace is the part of an execution trace that touches state.
type TransactionTrace struct {
	Type      TransactionType `json:"type,omitempty"`
	StateDiff *StateDiff      `json:"state_diff,omitempty"`
}
