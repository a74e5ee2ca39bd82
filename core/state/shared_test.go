package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/NethermindEth/stark-state/core/trie"
	"github.com/NethermindEth/stark-state/db/memory"
	"github.com/NethermindEth/stark-state/mocks"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newFFC() (*fact.Context, *memory.Database) {
	storage := memory.New()
	return fact.NewContext(storage, crypto.Pedersen), storage
}

func emptyState(t *testing.T, ffc *fact.Context, opts ...state.Option) *state.SharedState {
	t.Helper()
	s, err := state.Empty(context.Background(), ffc, state.EmptyBlockInfo(&felt.Zero, false), opts...)
	require.NoError(t, err)
	return s
}

// block0Diff is the state diff of StarkNet mainnet block 0.
// See https://alpha-mainnet.starknet.io/feeder_gateway/get_state_update?blockNumber=0.
func block0Diff(t *testing.T) *state.Diff {
	t.Helper()

	type slot struct{ key, val string }
	storage := map[string][]slot{
		"0x735596016a37ee972c42adef6a3cf628c19bb3794369c65d2c82ba034aecf2c": {
			{"0x5", "0x64"},
			{
				"0x2f50710449a06a9fa789b3c029a63bd0b1f722f46505828a9f815cf91b31d8",
				"0x2a222e62eabe91abdb6838fa8b267ffe81a6eb575f61e96ec9aa4460c0925a2",
			},
		},
		"0x20cfa74ee3564b4cd5435cdace0f9c4d43b939620e4a0bb5076105df0a626c6": {
			{"0x5", "0x22b"},
			{"0x5aee31408163292105d875070f98cb48275b8c87e80380b78d30647e05854d5", "0x7e5"},
			{
				"0x313ad57fdf765addc71329abf8d74ac2bce6d46da8c2b9b82255a5076620300",
				"0x4e7e989d58a17cd279eca440c5eaa829efb6f9967aaad89022acbe644c39b36",
			},
			{
				"0x313ad57fdf765addc71329abf8d74ac2bce6d46da8c2b9b82255a5076620301",
				"0x453ae0c9610197b18b13645c44d3d0a407083d96562e8752aab3fab616cecb0",
			},
			{
				"0x6cf6c2f36d36b08e591e4489e92ca882bb67b9c39a3afccf011972a8de467f0",
				"0x7ab344d88124307c07b56f6c59c12f4543e9c96398727854a322dea82c73240",
			},
		},
		"0x6ee3440b08a9c805305449ec7f7003f27e9f7e287b83610952ec36bdc5a6bae": {
			{
				"0x1e2cd4b3588e8f6f9c4e89fb0e293bf92018c96d7a93ee367d29a284223b6ff",
				"0x71d1e9d188c784a0bde95c1d508877a0d93e9102b37213d1e13f3ebc54a7751",
			},
			{"0x5f750dc13ed239fa6fc43ff6e10ae9125a33bd05ec034fc3bb4dd168df3505f", "0x7e5"},
			{
				"0x48cba68d4e86764105adcdcf641ab67b581a55a4f367203647549c8bf1feea2",
				"0x362d24a3b030998ac75e838955dfee19ec5b6eceb235b9bfbeccf51b6304d0b",
			},
			{
				"0x449908c349e90f81ab13042b1e49dc251eb6e3e51092d9a40f86859f7f415b0",
				"0x6cb6104279e754967a721b52bcf5be525fdc11fa6db6ef5c3a4db832acf7804",
			},
			{
				"0x5bdaf1d47b176bfcd1114809af85a46b9c4376e87e361d86536f0288a284b65",
				"0x28dff6722aa73281b2cf84cac09950b71fa90512db294d2042119abdd9f4b87",
			},
			{
				"0x5bdaf1d47b176bfcd1114809af85a46b9c4376e87e361d86536f0288a284b66",
				"0x57a8f8a019ccab5bfc6ff86c96b1392257abb8d5d110c01d326b94247af161c",
			},
		},
		"0x31c887d82502ceb218c06ebb46198da3f7b92864a8223746bc836dda3e34b52": {
			{"0x5f750dc13ed239fa6fc43ff6e10ae9125a33bd05ec034fc3bb4dd168df3505f", "0x7c7"},
			{
				"0xdf28e613c065616a2e79ca72f9c1908e17b8c913972a9993da77588dc9cae9",
				"0x1432126ac23c7028200e443169c2286f99cdb5a7bf22e607bcd724efa059040",
			},
		},
		"0x31c9cdb9b00cb35cf31c05855c0ec3ecf6f7952a1ce6e3c53c3455fcd75a280": {
			{"0x5", "0x65"},
			{"0x5aee31408163292105d875070f98cb48275b8c87e80380b78d30647e05854d5", "0x7c7"},
			{
				"0xcfc2e2866fd08bfb4ac73b70e0c136e326ae18fc797a2c090c8811c695577e",
				"0x5f1dd5a5aef88e0498eeca4e7b2ea0fa7110608c11531278742f0b5499af4b3",
			},
			{
				"0x5fac6815fddf6af1ca5e592359862ede14f171e1544fd9e792288164097c35d",
				"0x299e2f4b5a873e95e65eb03d31e532ea2cde43b498b50cd3161145db5542a5",
			},
			{
				"0x5fac6815fddf6af1ca5e592359862ede14f171e1544fd9e792288164097c35e",
				"0x3d6897cf23da3bf4fd35cc7a43ccaf7c5eaf8f7c5b9031ac9b09a929204175f",
			},
		},
	}

	classHash := utils.HexToFelt(t, "0x10455c752b86932ce552f2b0fe81a880746649b9aee7e0d842bf3f52378f9f8")
	diff := state.NewDiff()
	for addr, slots := range storage {
		address := *utils.HexToFelt(t, addr)
		diff.ClassHashes[address] = *classHash
		diff.StorageUpdates[address] = make(map[felt.Felt]felt.Felt, len(slots))
		for _, s := range slots {
			diff.StorageUpdates[address][*utils.HexToFelt(t, s.key)] = *utils.HexToFelt(t, s.val)
		}
	}
	return diff
}

var block0Root = "0x021870ba80540e7831fb21c591ee93481f5ae1bb71ff85a86ddd465be4eddee6"

func TestBlock0(t *testing.T) {
	ctx := context.Background()
	want := *utils.HexToFelt(t, block0Root)

	t.Run("empty class tree", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)
		assert.Equal(t, want, s.ContractStates.Root)
		assert.Equal(t, want, s.GlobalRoot())
	})

	t.Run("no class tree", func(t *testing.T) {
		ffc, _ := newFFC()
		legacy := state.New(trie.Tree[state.ContractState]{Height: state.ContractAddressBits}, nil, state.BlockInfo{})
		s, err := legacy.ApplyStateUpdates(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)
		assert.Nil(t, s.ContractClasses)
		assert.Equal(t, want, s.GlobalRoot())
	})

	t.Run("concurrent contract updates", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := emptyState(t, ffc, state.WithConcurrency(4)).ApplyStateUpdates(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)
		assert.Equal(t, want, s.GlobalRoot())
	})

	t.Run("storage roots", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := state.FromDiff(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)

		roots := map[string]string{
			"0x735596016a37ee972c42adef6a3cf628c19bb3794369c65d2c82ba034aecf2c": "0x15c52969f4ae2ad48bf324e21b8c06ce8abcbc492263072a8de9c7f0bfa3c81",
			"0x20cfa74ee3564b4cd5435cdace0f9c4d43b939620e4a0bb5076105df0a626c6": "0x4532b9a656bd6074c2ddb1b884fb976eb055cd4d37e093448ce3f223864ccc4",
			"0x6ee3440b08a9c805305449ec7f7003f27e9f7e287b83610952ec36bdc5a6bae": "0x51c6b823cbf53c47ab7b34cddf1d9c0286fbb9d72ab29f2b577da0308cb1a07",
			"0x31c887d82502ceb218c06ebb46198da3f7b92864a8223746bc836dda3e34b52": "0x2eb33f71cbf096ea6b3a55ba19fb31efc31184caca6482bc89c7708c2cbb420",
			"0x31c9cdb9b00cb35cf31c05855c0ec3ecf6f7952a1ce6e3c53c3455fcd75a280": "0x6fe0662f4be66647b4508a53a08e13e7d1ffb2b19e93fa9dc991153f3a447d",
		}
		for addr, root := range roots {
			contract, err := s.ContractStates.GetLeaf(ctx, ffc, utils.HexToFelt(t, addr))
			require.NoError(t, err)
			assert.Equal(t, *utils.HexToFelt(t, root), contract.StorageTree.Root, addr)
		}
	})
}

func TestGlobalRoot(t *testing.T) {
	statesRoot := *felt.FromUint64(11)
	classesRoot := *felt.FromUint64(22)
	states := trie.Tree[state.ContractState]{Root: statesRoot, Height: state.ContractAddressBits}
	emptyStates := trie.Tree[state.ContractState]{Height: state.ContractAddressBits}
	classes := &trie.Tree[state.ContractClassLeaf]{Root: classesRoot, Height: state.ContractClassBits}
	emptyClasses := &trie.Tree[state.ContractClassLeaf]{Height: state.ContractClassBits}
	version := felt.FromBytes([]byte("STARKNET_STATE_V0"))

	tests := map[string]struct {
		state *state.SharedState
		want  felt.Felt
	}{
		"both empty": {
			state: state.New(emptyStates, emptyClasses, state.BlockInfo{}),
			want:  felt.Zero,
		},
		"states empty and no class tree": {
			state: state.New(emptyStates, nil, state.BlockInfo{}),
			want:  felt.Zero,
		},
		"empty class tree": {
			state: state.New(states, emptyClasses, state.BlockInfo{}),
			want:  statesRoot,
		},
		"no class tree": {
			state: state.New(states, nil, state.BlockInfo{}),
			want:  statesRoot,
		},
		"both set": {
			state: state.New(states, classes, state.BlockInfo{}),
			want:  *crypto.PoseidonArray(version, &statesRoot, &classesRoot),
		},
		"only classes set": {
			state: state.New(emptyStates, classes, state.BlockInfo{}),
			want:  *crypto.PoseidonArray(version, &felt.Zero, &classesRoot),
		},
		"configured global hash": {
			state: state.New(states, classes, state.BlockInfo{}, state.WithHashes(crypto.Pedersen, crypto.PedersenArray)),
			want:  *crypto.PedersenArray(version, &statesRoot, &classesRoot),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, test.state.GlobalRoot())
		})
	}

	t.Run("zero value", func(t *testing.T) {
		s := &state.SharedState{ContractStates: states, ContractClasses: classes}
		assert.Equal(t, *crypto.PoseidonArray(version, &statesRoot, &classesRoot), s.GlobalRoot())
	})
}

func TestApplyStateUpdates(t *testing.T) {
	ctx := context.Background()
	address := *felt.FromUint64(0xa)
	key := *felt.FromUint64(0xb)
	value := *felt.FromUint64(0xc)

	t.Run("nonce and storage", func(t *testing.T) {
		ffc, _ := newFFC()
		empty := emptyState(t, ffc)
		require.Equal(t, felt.Zero, empty.GlobalRoot())

		diff := state.NewDiff()
		diff.Nonces[address] = *felt.FromUint64(1)
		diff.StorageUpdates[address] = map[felt.Felt]felt.Felt{key: value}

		blockInfo := state.BlockInfo{BlockNumber: 1, BlockTimestamp: 1700000000}
		s, err := empty.ApplyStateUpdates(ctx, ffc, diff, blockInfo)
		require.NoError(t, err)
		assert.NotEqual(t, felt.Zero, s.GlobalRoot())
		assert.Equal(t, blockInfo, s.BlockInfo)
		assert.Equal(t, felt.Zero, empty.GlobalRoot(), "receiver must not change")

		contract, err := s.ContractStates.GetLeaf(ctx, ffc, &address)
		require.NoError(t, err)
		assert.Equal(t, *felt.FromUint64(1), contract.Nonce)
		leaf, err := contract.StorageTree.GetLeaf(ctx, ffc, &key)
		require.NoError(t, err)
		assert.Equal(t, value, leaf.Value)
	})

	t.Run("empty diff keeps roots", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := state.FromDiff(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)

		next, err := s.ApplyStateUpdates(ctx, ffc, state.NewDiff(), state.BlockInfo{BlockNumber: 1})
		require.NoError(t, err)
		assert.Equal(t, s.ContractStates, next.ContractStates)
		assert.Equal(t, s.ContractClasses, next.ContractClasses)
		assert.Equal(t, s.GlobalRoot(), next.GlobalRoot())
	})

	t.Run("nil diff keeps roots", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := state.FromDiff(ctx, ffc, block0Diff(t), state.BlockInfo{})
		require.NoError(t, err)

		next, err := s.ApplyStateUpdates(ctx, ffc, nil, state.BlockInfo{BlockNumber: 1})
		require.NoError(t, err)
		assert.Equal(t, s.GlobalRoot(), next.GlobalRoot())
		assert.Equal(t, uint64(1), next.BlockInfo.BlockNumber)
	})

	storageDiff := func(contract felt.Felt, slots map[uint64]uint64) *state.Diff {
		diff := state.NewDiff()
		diff.StorageUpdates[contract] = make(map[felt.Felt]felt.Felt, len(slots))
		for k, v := range slots {
			diff.StorageUpdates[contract][*felt.FromUint64(k)] = *felt.FromUint64(v)
		}
		return diff
	}

	t.Run("cleared storage slot", func(t *testing.T) {
		ffc, _ := newFFC()
		s, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc,
			storageDiff(address, map[uint64]uint64{2: 1, 6: 2, 7: 1}), state.BlockInfo{})
		require.NoError(t, err)
		cleared, err := s.ApplyStateUpdates(ctx, ffc, storageDiff(address, map[uint64]uint64{2: 0}), state.BlockInfo{})
		require.NoError(t, err)

		direct, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc,
			storageDiff(address, map[uint64]uint64{6: 2, 7: 1}), state.BlockInfo{})
		require.NoError(t, err)
		assert.Equal(t, direct.GlobalRoot(), cleared.GlobalRoot())

		value, err := state.NewStateReader(cleared, ffc).StorageAt(ctx, &address, felt.FromUint64(2))
		require.NoError(t, err)
		assert.Equal(t, felt.Zero, value)
	})

	t.Run("contract emptied by clearing its storage", func(t *testing.T) {
		ffc, _ := newFFC()
		contracts := []felt.Felt{*felt.FromUint64(2), *felt.FromUint64(6), *felt.FromUint64(7)}
		all := state.NewDiff()
		for i, contract := range contracts {
			all.StorageUpdates[contract] = map[felt.Felt]felt.Felt{key: *felt.FromUint64(uint64(i) + 1)}
		}
		s, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc, all, state.BlockInfo{})
		require.NoError(t, err)
		cleared, err := s.ApplyStateUpdates(ctx, ffc, storageDiff(contracts[0], map[uint64]uint64{0xb: 0}), state.BlockInfo{})
		require.NoError(t, err)

		rest := state.NewDiff()
		for i, contract := range contracts[1:] {
			rest.StorageUpdates[contract] = map[felt.Felt]felt.Felt{key: *felt.FromUint64(uint64(i) + 2)}
		}
		direct, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc, rest, state.BlockInfo{})
		require.NoError(t, err)
		assert.Equal(t, direct.ContractStates.Root, cleared.ContractStates.Root)
		assert.Equal(t, direct.GlobalRoot(), cleared.GlobalRoot())
	})

	t.Run("order of blocks with disjoint slots", func(t *testing.T) {
		first := state.NewDiff()
		first.StorageUpdates[address] = map[felt.Felt]felt.Felt{key: value}
		first.CompiledClassHashes[*felt.FromUint64(0x100)] = *felt.FromUint64(0x200)
		second := state.NewDiff()
		second.Nonces[*felt.FromUint64(0xd)] = *felt.FromUint64(3)
		second.ClassHashes[address] = *felt.FromUint64(0x100)
		second.CompiledClassHashes[*felt.FromUint64(0x101)] = *felt.FromUint64(0x201)

		apply := func(diffs ...*state.Diff) felt.Felt {
			ffc, _ := newFFC()
			s := emptyState(t, ffc)
			for _, d := range diffs {
				var err error
				s, err = s.ApplyStateUpdates(ctx, ffc, d, state.BlockInfo{})
				require.NoError(t, err)
			}
			return s.GlobalRoot()
		}

		merged := state.NewDiff()
		for _, d := range []*state.Diff{first, second} {
			for k, v := range d.StorageUpdates {
				merged.StorageUpdates[k] = v
			}
			for k, v := range d.Nonces {
				merged.Nonces[k] = v
			}
			for k, v := range d.ClassHashes {
				merged.ClassHashes[k] = v
			}
			for k, v := range d.CompiledClassHashes {
				merged.CompiledClassHashes[k] = v
			}
		}

		want := apply(first, second)
		assert.Equal(t, want, apply(second, first))
		assert.Equal(t, want, apply(merged))
	})

	t.Run("class tree", func(t *testing.T) {
		ffc, _ := newFFC()
		classHash := *felt.FromUint64(0x100)
		compiledClassHash := *felt.FromUint64(0x200)
		diff := state.NewDiff()
		diff.CompiledClassHashes[classHash] = compiledClassHash

		s, err := emptyState(t, ffc).ApplyStateUpdates(ctx, ffc, diff, state.BlockInfo{})
		require.NoError(t, err)
		require.NotNil(t, s.ContractClasses)
		assert.True(t, s.ContractStates.IsEmpty())

		classes := s.ClassesRoot()
		assert.False(t, classes.IsZero())
		version := felt.FromBytes([]byte("STARKNET_STATE_V0"))
		assert.Equal(t, *crypto.PoseidonArray(version, &felt.Zero, &classes), s.GlobalRoot())

		leaf, err := s.ContractClasses.GetLeaf(ctx, ffc.WithHash(crypto.Poseidon), &classHash)
		require.NoError(t, err)
		assert.Equal(t, compiledClassHash, leaf.CompiledClassHash)
	})

	t.Run("class tree absent", func(t *testing.T) {
		ffc, storage := newFFC()
		legacy := state.New(trie.Tree[state.ContractState]{Height: state.ContractAddressBits}, nil, state.BlockInfo{})
		diff := state.NewDiff()
		diff.StorageUpdates[address] = map[felt.Felt]felt.Felt{key: value}
		diff.CompiledClassHashes[*felt.FromUint64(1)] = *felt.FromUint64(2)

		_, err := legacy.ApplyStateUpdates(ctx, ffc, diff, state.BlockInfo{})
		require.ErrorIs(t, err, state.ErrClassTreeAbsent)
		assert.Zero(t, storage.Len())
	})

	t.Run("storage failure", func(t *testing.T) {
		mockCtrl := gomock.NewController(t)
		storage := mocks.NewMockStorage(mockCtrl)
		boom := errors.New("boom")
		storage.EXPECT().GetMany(gomock.Any(), gomock.Any()).Return(nil, boom)

		ffc := fact.NewContext(storage, crypto.Pedersen)
		s := state.New(trie.Tree[state.ContractState]{Root: *felt.FromUint64(1), Height: state.ContractAddressBits},
			nil, state.BlockInfo{})
		diff := state.NewDiff()
		diff.Nonces[address] = *felt.FromUint64(1)

		_, err := s.ApplyStateUpdates(ctx, ffc, diff, state.BlockInfo{})
		var storageErr *fact.StorageError
		require.ErrorAs(t, err, &storageErr)
		require.ErrorIs(t, err, boom)
	})

	t.Run("missing contract tree", func(t *testing.T) {
		ffc, _ := newFFC()
		s := state.New(trie.Tree[state.ContractState]{Root: *felt.FromUint64(1), Height: state.ContractAddressBits},
			nil, state.BlockInfo{})
		diff := state.NewDiff()
		diff.Nonces[address] = *felt.FromUint64(1)

		_, err := s.ApplyStateUpdates(ctx, ffc, diff, state.BlockInfo{})
		var missing *fact.MissingFactError
		require.ErrorAs(t, err, &missing)
	})
}

func TestContractClassTree(t *testing.T) {
	ctx := context.Background()
	ffc, storage := newFFC()

	legacy := state.New(trie.Tree[state.ContractState]{Height: state.ContractAddressBits}, nil, state.BlockInfo{})
	tree, err := legacy.ContractClassTree(ctx, ffc)
	require.NoError(t, err)
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, uint8(state.ContractClassBits), tree.Height)
	assert.Zero(t, storage.Len())

	classes := trie.Tree[state.ContractClassLeaf]{Root: *felt.FromUint64(5), Height: state.ContractClassBits}
	current := state.New(legacy.ContractStates, &classes, state.BlockInfo{})
	tree, err = current.ContractClassTree(ctx, ffc)
	require.NoError(t, err)
	assert.Equal(t, classes, tree)
}

func TestEmpty(t *testing.T) {
	ffc, storage := newFFC()
	sequencer := felt.FromUint64(0x1234)
	s, err := state.Empty(context.Background(), ffc, state.EmptyBlockInfo(sequencer, true))
	require.NoError(t, err)

	assert.True(t, s.ContractStates.IsEmpty())
	assert.Equal(t, uint8(state.ContractAddressBits), s.ContractStates.Height)
	require.NotNil(t, s.ContractClasses)
	assert.True(t, s.ContractClasses.IsEmpty())
	assert.Equal(t, *sequencer, s.BlockInfo.SequencerAddress)
	assert.True(t, s.BlockInfo.UseKZGDA)
	assert.Equal(t, felt.Zero, s.GlobalRoot())
	assert.Zero(t, storage.Len())
}
