package main

import (
	"fmt"
	"os"

	"github.com/NethermindEth/stark-state/node"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var Version string

const (
	configF           = "config"
	logLevelF         = "log-level"
	colourF           = "colour"
	dbPathF           = "db-path"
	dbCacheSizeF      = "db-cache-size"
	dbMaxHandlesF     = "db-max-handles"
	factCacheSizeF    = "fact-cache-size"
	retryMaxElapsedF  = "retry-max-elapsed"
	fallbackDBPathF   = "fallback-db-path"
	nodeHashF         = "node-hash"
	classHashF        = "class-hash"
	globalHashF       = "global-hash"
	concurrencyF      = "concurrency"
	sequencerAddressF = "sequencer-address"
	useKZGDAF         = "use-kzg-da"
	metricsF          = "metrics"
	metricsHostF      = "metrics-host"
	metricsPortF      = "metrics-port"

	defaultConfig           = ""
	defaultColour           = true
	defaultDBPath           = "stark-state-db"
	defaultDBCacheSize      = uint(1024)
	defaultDBMaxHandles     = 1024
	defaultFactCacheSize    = 1 << 20
	defaultRetryMaxElapsed  = "0s"
	defaultFallbackDBPath   = ""
	defaultNodeHash         = "pedersen"
	defaultClassHash        = "poseidon"
	defaultGlobalHash       = "poseidon"
	defaultConcurrency      = 1
	defaultSequencerAddress = "0x0"
	defaultUseKZGDA         = false
	defaultMetrics          = false
	defaultMetricsHost      = "localhost"
	defaultMetricsPort      = uint16(9090)

	configFlagUsage       = "The YAML configuration file."
	logLevelFlagUsage     = "Options: debug, info, warn, error."
	colourUsage           = "Use `--colour=false` command to disable colourized outputs (ANSI Escape Codes)."
	dbPathUsage           = "Location of the database files."
	dbCacheSizeUsage      = "Determines the amount of memory (in megabytes) allocated for caching data in the database."
	dbMaxHandlesUsage     = "A soft limit on the number of open files that can be used by the DB"
	factCacheSizeUsage    = "Number of facts kept in memory in front of the database. 0 disables the cache."
	retryMaxElapsedUsage  = "Retry failed storage calls for up to this long. 0 disables retries."
	fallbackDBPathUsage   = "Read-only database consulted for facts missing from the main database."
	nodeHashUsage         = "Hash of contract and storage tree nodes. Options: pedersen, poseidon."
	classHashUsage        = "Hash of class tree nodes. Options: pedersen, poseidon."
	globalHashUsage       = "Hash combining the tree roots into the global root. Options: pedersen, poseidon."
	concurrencyUsage      = "Number of contract storage trees updated in parallel."
	sequencerAddressUsage = "Sequencer address recorded in the block info of a fresh state."
	useKZGDAUsage         = "Record KZG data availability in the block info of a fresh state."
	metricsUsage          = "Enables the Prometheus metrics endpoint."
	metricsHostUsage      = "The interface on which the Prometheus endpoint will listen for requests."
	metricsPortUsage      = "The port on which the Prometheus endpoint will listen for requests."
)

var cfgFile string

func NewCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "stark-state",
		Short:        "StarkNet state commitment engine.",
		Version:      Version,
		SilenceUsage: true,
	}

	defaultLogLevel := utils.INFO
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	flags.Var(&defaultLogLevel, logLevelF, logLevelFlagUsage)
	flags.Bool(colourF, defaultColour, colourUsage)
	flags.String(dbPathF, defaultDBPath, dbPathUsage)
	flags.Uint(dbCacheSizeF, defaultDBCacheSize, dbCacheSizeUsage)
	flags.Int(dbMaxHandlesF, defaultDBMaxHandles, dbMaxHandlesUsage)
	flags.Int(factCacheSizeF, defaultFactCacheSize, factCacheSizeUsage)
	flags.String(retryMaxElapsedF, defaultRetryMaxElapsed, retryMaxElapsedUsage)
	flags.String(fallbackDBPathF, defaultFallbackDBPath, fallbackDBPathUsage)
	flags.String(nodeHashF, defaultNodeHash, nodeHashUsage)
	flags.String(classHashF, defaultClassHash, classHashUsage)
	flags.String(globalHashF, defaultGlobalHash, globalHashUsage)
	flags.Int(concurrencyF, defaultConcurrency, concurrencyUsage)
	flags.String(sequencerAddressF, defaultSequencerAddress, sequencerAddressUsage)
	flags.Bool(useKZGDAF, defaultUseKZGDA, useKZGDAUsage)
	flags.Bool(metricsF, defaultMetrics, metricsUsage)
	flags.String(metricsHostF, defaultMetricsHost, metricsHostUsage)
	flags.Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)

	rootCmd.AddCommand(ApplyCmd(), RootCmd(), ReadCmd(), ConfigCmd())
	return rootCmd
}

// loadConfig merges the config file and the flags of cmd. Flags set on the command line take
// precedence over the file, which takes precedence over flag defaults.
func loadConfig(cmd *cobra.Command) (*node.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg := new(node.Config)
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// openNode loads the configuration and opens the node. The caller closes it.
func openNode(cmd *cobra.Command) (*node.Node, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}
	return node.New(cfg, log)
}

func ConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func closeNode(cmd *cobra.Command, n *node.Node) {
	if err := n.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "close database:", err)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
