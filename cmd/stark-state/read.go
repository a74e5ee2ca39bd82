package main

import (
	"fmt"

	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the roots of the latest committed state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := openNode(cmd)
			if err != nil {
				return err
			}
			defer closeNode(cmd, n)

			s, committed, err := n.Latest(cmd.Context())
			if err != nil {
				return err
			}
			if !committed {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no committed state")
				return err
			}

			global, classes := s.GlobalRoot(), s.ClassesRoot()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "block: %d\ncontract states root: %s\nclasses root: %s\nglobal root: %s\n",
				s.BlockInfo.BlockNumber, s.ContractStates.Root.String(), classes.String(), global.String())
			return err
		},
	}
}

func parseFelts(args []string) ([]*felt.Felt, error) {
	felts := make([]*felt.Felt, len(args))
	for i, arg := range args {
		f, err := new(felt.Felt).SetString(arg)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", arg, err)
		}
		felts[i] = f
	}
	return felts, nil
}

type readFn func(r *state.SyncReader, args []*felt.Felt) (felt.Felt, error)

func readSubCmd(use, short string, nArgs int, read readFn) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			felts, err := parseFelts(args)
			if err != nil {
				return err
			}

			n, err := openNode(cmd)
			if err != nil {
				return err
			}
			defer closeNode(cmd, n)

			s, _, err := n.Latest(cmd.Context())
			if err != nil {
				return err
			}
			value, err := read(state.NewSyncReader(cmd.Context(), n.Reader(s)), felts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value.String())
			return err
		},
	}
}

func ReadCmd() *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read values from the latest committed state",
	}
	readCmd.AddCommand(
		readSubCmd("storage ADDRESS KEY", "Storage value of a contract", 2,
			func(r *state.SyncReader, args []*felt.Felt) (felt.Felt, error) {
				return r.StorageAt(args[0], args[1])
			}),
		readSubCmd("nonce ADDRESS", "Nonce of a contract", 1,
			func(r *state.SyncReader, args []*felt.Felt) (felt.Felt, error) {
				return r.NonceAt(args[0])
			}),
		readSubCmd("class-hash ADDRESS", "Class hash of a contract", 1,
			func(r *state.SyncReader, args []*felt.Felt) (felt.Felt, error) {
				return r.ClassHashAt(args[0])
			}),
		readSubCmd("compiled-class-hash CLASS_HASH", "Compiled class hash of a declared class", 1,
			func(r *state.SyncReader, args []*felt.Felt) (felt.Felt, error) {
				return r.CompiledClassHash(args[0])
			}),
	)
	return readCmd
}
