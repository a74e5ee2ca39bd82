// Package vm2state translates execution engine write sets into state diffs.
package vm2state

import (
	"github.com/NethermindEth/stark-state/core/class"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/NethermindEth/stark-state/vm"
)

// AdaptStateDiff converts a single write set. A nil write set is the empty diff.
func AdaptStateDiff(sd *vm.StateDiff) *state.Diff {
	result := state.NewDiff()
	merge(result, sd)
	return result
}

// StateDiff merges the write sets of a block's transactions in execution order. Later
// transactions overwrite earlier writes to the same slot.
func StateDiff(traces []vm.TransactionTrace) *state.Diff {
	result := state.NewDiff()
	for i := range traces {
		merge(result, traces[i].StateDiff)
	}
	return result
}

// MergeStateDiffs merges write sets in order.
func MergeStateDiffs(diffs []*vm.StateDiff) *state.Diff {
	result := state.NewDiff()
	for _, sd := range diffs {
		merge(result, sd)
	}
	return result
}

func merge(result *state.Diff, sd *vm.StateDiff) {
	if sd == nil {
		return
	}
	for i := range sd.StorageDiffs {
		diff := &sd.StorageDiffs[i]
		address := *diff.Address.Felt()
		entries, ok := result.StorageUpdates[address]
		if !ok {
			entries = make(map[felt.Felt]felt.Felt, len(diff.StorageEntries))
			result.StorageUpdates[address] = entries
		}
		for j := range diff.StorageEntries {
			entry := &diff.StorageEntries[j]
			entries[*entry.Key.Felt()] = entry.Value
		}
	}
	for i := range sd.Nonces {
		result.Nonces[*sd.Nonces[i].ContractAddress.Felt()] = sd.Nonces[i].Nonce
	}
	for i := range sd.DeployedContracts {
		dc := &sd.DeployedContracts[i]
		result.ClassHashes[*dc.Address.Felt()] = *dc.ClassHash.Felt()
	}
	for i := range sd.ReplacedClasses {
		rc := &sd.ReplacedClasses[i]
		result.ClassHashes[*rc.ContractAddress.Felt()] = *rc.ClassHash.Felt()
	}
	for i := range sd.DeclaredClasses {
		dc := &sd.DeclaredClasses[i]
		result.CompiledClassHashes[*dc.ClassHash.Felt()] = *dc.CompiledClassHash.Felt()
	}
	for i := range sd.MigratedCompiledClasses {
		mc := &sd.MigratedCompiledClasses[i]
		result.CompiledClassHashes[*mc.ClassHash.Felt()] = *mc.CompiledClassHash.Felt()
	}
}

// CompiledClasses lists the classes declared by sd, deprecated ones first, each group in
// declaration order.
func CompiledClasses(sd *vm.StateDiff) []class.Compiled {
	if sd == nil {
		return nil
	}
	deprecated := utils.Map(sd.DeprecatedDeclaredClasses, func(h *felt.ClassHash) class.Compiled {
		return class.NewDeprecated(h.Felt())
	})
	sierra := utils.Map(sd.DeclaredClasses, func(dc vm.DeclaredClass) class.Compiled {
		return class.NewSierra(dc.ClassHash.Felt(), dc.CompiledClassHash.Felt())
	})
	return append(deprecated, sierra...)
}
