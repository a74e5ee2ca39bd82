package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NethermindEth/stark-state/adapters/vm2state"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/NethermindEth/stark-state/vm"
	"github.com/spf13/cobra"
)

const (
	tracesF        = "traces"
	timestampF     = "timestamp"
	tracesUsage    = "Read each file as a JSON array of transaction traces instead of a state diff."
	timestampUsage = "Block timestamp recorded for every applied block. Defaults to the current time."
)

func ApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply [flags] diff.json...",
		Short: "Apply state diffs on top of the latest committed state",
		Long: `Each file is applied as one block, in the given order. The global root of every block
is printed once the block is committed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: apply,
	}
	applyCmd.Flags().Bool(tracesF, false, tracesUsage)
	applyCmd.Flags().Uint64(timestampF, 0, timestampUsage)
	return applyCmd
}

func readDiff(path string, traces bool) (*state.Diff, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if traces {
		var txs []vm.TransactionTrace
		if err = json.Unmarshal(data, &txs); err != nil {
			return nil, fmt.Errorf("decode traces in %s: %w", path, err)
		}
		return vm2state.StateDiff(txs), nil
	}

	diff := state.NewDiff()
	if err = json.Unmarshal(data, diff); err != nil {
		return nil, fmt.Errorf("decode state diff in %s: %w", path, err)
	}
	return diff, nil
}

func apply(cmd *cobra.Command, args []string) error {
	traces, err := cmd.Flags().GetBool(tracesF)
	if err != nil {
		return err
	}
	timestamp, err := cmd.Flags().GetUint64(timestampF)
	if err != nil {
		return err
	}
	if timestamp == 0 {
		timestamp = uint64(time.Now().Unix())
	}

	diffs := make([]*state.Diff, len(args))
	for i, path := range args {
		if diffs[i], err = readDiff(path, traces); err != nil {
			return err
		}
	}

	n, err := openNode(cmd)
	if err != nil {
		return err
	}
	defer closeNode(cmd, n)

	return n.Run(cmd.Context(), func(ctx context.Context) error {
		for _, diff := range diffs {
			s, err := n.Apply(ctx, diff, timestamp)
			if err != nil {
				return err
			}
			root := s.GlobalRoot()
			if _, err = fmt.Fprintf(cmd.OutOrStdout(), "block %d root %s\n", s.BlockInfo.BlockNumber, root.String()); err != nil {
				return err
			}
		}
		return nil
	})
}
