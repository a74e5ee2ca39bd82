package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	starkstate "github.com/NethermindEth/stark-state/cmd/stark-state"
	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/core/state"
	"github.com/NethermindEth/stark-state/db/memory"
	"github.com/NethermindEth/stark-state/node"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	b := new(bytes.Buffer)
	cmd := starkstate.NewCmd()
	cmd.SetOut(b)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return b.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigPrecedence(t *testing.T) {
	configFile := writeFile(t, "config.yaml", `db-path: /from/file
concurrency: 4
log-level: debug
sequencer-address: "0x1234"
retry-max-elapsed: 30s
`)

	tests := map[string]struct {
		args []string
		want func(*node.Config)
	}{
		"defaults": {
			args: []string{"config"},
			want: func(*node.Config) {},
		},
		"config file": {
			args: []string{"config", "--config", configFile},
			want: func(c *node.Config) {
				c.DatabasePath = "/from/file"
				c.Concurrency = 4
				c.LogLevel = utils.DEBUG
				c.SequencerAddress = *felt.FromUint64(0x1234)
				c.RetryMaxElapsed = 30 * time.Second
			},
		},
		"flags override config file": {
			args: []string{"config", "--config", configFile, "--concurrency", "8", "--log-level", "warn"},
			want: func(c *node.Config) {
				c.DatabasePath = "/from/file"
				c.Concurrency = 8
				c.LogLevel = utils.WARN
				c.SequencerAddress = *felt.FromUint64(0x1234)
				c.RetryMaxElapsed = 30 * time.Second
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := run(t, test.args...)
			require.NoError(t, err)

			want := node.Config{
				LogLevel:      utils.INFO,
				Colour:        true,
				DatabasePath:  "stark-state-db",
				DBCacheSize:   1024,
				DBMaxHandles:  1024,
				FactCacheSize: 1 << 20,
				NodeHash:      "pedersen",
				ClassHash:     "poseidon",
				GlobalHash:    "poseidon",
				Concurrency:   1,
				MetricsHost:   "localhost",
				MetricsPort:   9090,
			}
			test.want(&want)

			var dumped map[string]any
			require.NoError(t, yaml.Unmarshal([]byte(out), &dumped))
			expected, err := yaml.Marshal(want)
			require.NoError(t, err)
			var wantDumped map[string]any
			require.NoError(t, yaml.Unmarshal(expected, &wantDumped))
			assert.Equal(t, wantDumped, dumped)
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		_, err := run(t, "config", "--node-hash", "keccak")
		require.Error(t, err)
	})
}

const diffJSON = `{
	"class_hashes": {"0x1": "0x10"},
	"nonces": {"0x1": "0x2"},
	"compiled_class_hashes": {"0x10": "0x20"},
	"storage_updates": {"0x1": {"0x2": "0x3"}}
}`

const tracesJSON = `[
	{"type": "DEPLOY_ACCOUNT", "state_diff": {
		"deployed_contracts": [{"address": "0x1", "class_hash": "0x10"}],
		"nonces": [{"contract_address": "0x1", "nonce": "0x1"}]
	}},
	{"type": "INVOKE", "state_diff": {
		"storage_diffs": [{"address": "0x1", "storage_entries": [{"key": "0x2", "value": "0x3"}]}],
		"nonces": [{"contract_address": "0x1", "nonce": "0x2"}],
		"declared_classes": [{"class_hash": "0x10", "compiled_class_hash": "0x20"}]
	}}
]`

func expectedRoot(t *testing.T) string {
	t.Helper()
	ffc := fact.NewContext(memory.New(), crypto.Pedersen)
	diff := state.NewDiff()
	diff.ClassHashes[*felt.FromUint64(1)] = *felt.FromUint64(0x10)
	diff.Nonces[*felt.FromUint64(1)] = *felt.FromUint64(2)
	diff.CompiledClassHashes[*felt.FromUint64(0x10)] = *felt.FromUint64(0x20)
	diff.StorageUpdates[*felt.FromUint64(1)] = map[felt.Felt]felt.Felt{*felt.FromUint64(2): *felt.FromUint64(3)}

	s, err := state.FromDiff(context.Background(), ffc, diff, state.BlockInfo{})
	require.NoError(t, err)
	root := s.GlobalRoot()
	return root.String()
}

func TestApplyAndRead(t *testing.T) {
	want := expectedRoot(t)

	for name, input := range map[string]struct {
		content string
		flags   []string
	}{
		"state diff": {content: diffJSON},
		"traces":     {content: tracesJSON, flags: []string{"--traces"}},
	} {
		t.Run(name, func(t *testing.T) {
			dbPath := t.TempDir()
			file := writeFile(t, "block.json", input.content)

			out, err := run(t, "root", "--db-path", dbPath)
			require.NoError(t, err)
			assert.Equal(t, "no committed state\n", out)

			args := append([]string{"apply", "--db-path", dbPath, "--timestamp", "5"}, input.flags...)
			out, err = run(t, append(args, file)...)
			require.NoError(t, err)
			assert.Equal(t, "block 0 root "+want+"\n", out)

			out, err = run(t, "root", "--db-path", dbPath)
			require.NoError(t, err)
			assert.Contains(t, out, "block: 0\n")
			assert.Contains(t, out, "global root: "+want+"\n")

			reads := map[string][]string{
				"0x3":  {"read", "storage", "0x1", "0x2"},
				"0x2":  {"read", "nonce", "0x1"},
				"0x10": {"read", "class-hash", "0x1"},
				"0x20": {"read", "compiled-class-hash", "0x10"},
				"0x0":  {"read", "storage", "0x1", "0x99"},
			}
			for value, args := range reads {
				out, err := run(t, append(args, "--db-path", dbPath)...)
				require.NoError(t, err)
				assert.Equal(t, value, strings.TrimSpace(out), args)
			}
		})
	}

	t.Run("blocks are numbered", func(t *testing.T) {
		dbPath := t.TempDir()
		first := writeFile(t, "first.json", diffJSON)
		second := writeFile(t, "second.json", `{"nonces": {"0x1": "0x3"}}`)

		out, err := run(t, "apply", "--db-path", dbPath, first, second)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "block 0 root "+want))
		assert.True(t, strings.HasPrefix(lines[1], "block 1 root "))
		assert.NotEqual(t, lines[0][len("block 0 "):], lines[1][len("block 1 "):])
	})

	t.Run("bad input", func(t *testing.T) {
		dbPath := t.TempDir()
		_, err := run(t, "apply", "--db-path", dbPath, writeFile(t, "bad.json", "{"))
		require.Error(t, err)

		_, err = run(t, "apply", "--db-path", dbPath, filepath.Join(dbPath, "missing.json"))
		require.Error(t, err)

		_, err = run(t, "read", "nonce", "not-a-felt", "--db-path", dbPath)
		require.Error(t, err)
	})
}
