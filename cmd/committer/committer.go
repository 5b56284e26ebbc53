package main

import (
	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/node"
	"github.com/NethermindEth/committer/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version string

const (
	configF         = "config"
	logLevelF       = "log-level"
	colourF         = "colour"
	dbPathF         = "db-path"
	cacheSizeMBF    = "cache-size-mb"
	trieCacheSizeF  = "trie-cache-size"
	workersF        = "workers"
	classesHashF    = "classes-hash"
	commitmentHashF = "commitment-hash"
	metricsF        = "metrics"
	metricsHostF    = "metrics-host"
	metricsPortF    = "metrics-port"

	defaultConfig         = ""
	defaultLogLevel       = utils.INFO
	defaultColour         = true
	defaultDBPath         = ""
	defaultCacheSizeMB    = uint(1024)
	defaultTrieCacheSize  = 1 << 16
	defaultWorkers        = 0
	defaultClassesHash    = crypto.Blake2sName
	defaultCommitmentHash = crypto.Blake2sName
	defaultMetrics        = false
	defaultMetricsHost    = "localhost"
	defaultMetricsPort    = uint16(9090)

	configFlagUsage     = "The yaml configuration file."
	logLevelFlagUsage   = "Options: debug, info, warn, error."
	colourUsage         = "Uses --colour=false command to disable colourized outputs (ANSI Escape Codes)."
	dbPathUsage         = "Location of the node database. An in-memory store is used when empty."
	cacheSizeMBUsage    = "Determines the amount of memory (in megabytes) allocated for caching data in the database."
	trieCacheSizeUsage  = "Number of encoded trie nodes kept in memory. 0 disables the cache."
	workersUsage        = "Maximum number of storage tries committed concurrently. 0 uses GOMAXPROCS."
	classesHashUsage    = "Hash function of the classes trie. Options: pedersen, blake2s."
	commitmentHashUsage = "Hash function combining the trie roots into the state commitment. Options: pedersen, blake2s."
	metricsUsage        = "Enables the Prometheus metrics endpoint on the default port."
	metricsHostUsage    = "The interface on which the Prometheus endpoint will listen for requests."
	metricsPortUsage    = "The port on which the Prometheus endpoint will listen for requests."
)

// NewNodeFn opens the node a subcommand runs against.
type NewNodeFn func(cfg *node.Config) (*node.Node, error)

func NewCmd(newNodeFn NewNodeFn) *cobra.Command {
	var cfgFile string
	committerCmd := &cobra.Command{
		Use:           "committer [flags]",
		Short:         "Starknet state commitment engine.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logLevel := defaultLogLevel
	flags := committerCmd.PersistentFlags()
	flags.StringVar(&cfgFile, configF, defaultConfig, configFlagUsage)
	flags.Var(&logLevel, logLevelF, logLevelFlagUsage)
	flags.Bool(colourF, defaultColour, colourUsage)
	flags.String(dbPathF, defaultDBPath, dbPathUsage)
	flags.Uint(cacheSizeMBF, defaultCacheSizeMB, cacheSizeMBUsage)
	flags.Int(trieCacheSizeF, defaultTrieCacheSize, trieCacheSizeUsage)
	flags.Int(workersF, defaultWorkers, workersUsage)
	flags.String(classesHashF, defaultClassesHash, classesHashUsage)
	flags.String(commitmentHashF, defaultCommitmentHash, commitmentHashUsage)
	flags.Bool(metricsF, defaultMetrics, metricsUsage)
	flags.String(metricsHostF, defaultMetricsHost, metricsHostUsage)
	flags.Uint16(metricsPortF, defaultMetricsPort, metricsPortUsage)

	load := func(cmd *cobra.Command) (*node.Config, error) {
		return loadConfig(cmd, cfgFile)
	}
	committerCmd.AddCommand(
		CommitTrieCmd(newNodeFn, load),
		CommitForestCmd(newNodeFn, load),
		ProveCmd(newNodeFn, load),
		DBStatsCmd(newNodeFn, load),
		ConfigCmd(load),
	)
	return committerCmd
}

type configLoader func(cmd *cobra.Command) (*node.Config, error)

// loadConfig merges the flags of cmd over the yaml file at cfgFile, flags
// taking precedence.
func loadConfig(cmd *cobra.Command, cfgFile string) (*node.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	cfg := new(node.Config)
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()))
	if err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// openNode loads the configuration of cmd and opens a node with it. The
// returned node is already started.
func openNode(cmd *cobra.Command, newNodeFn NewNodeFn, load configLoader) (*node.Node, error) {
	cfg, err := load(cmd)
	if err != nil {
		return nil, err
	}
	n, err := newNodeFn(cfg)
	if err != nil {
		return nil, err
	}
	n.Start(cmd.Context())
	return n, nil
}

func closeNode(n *node.Node) {
	if err := n.Close(); err != nil {
		n.Log().Errorw("Error while closing the node", "err", err)
	}
}
