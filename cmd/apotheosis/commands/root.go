// Package commands implements the apotheosis command-line driver: a thin
// cobra wrapper over internal/index.IndexFacade. It parses flags and
// calls into the facade; it does not implement index semantics
// itself (those live in internal/hnsw, internal/persist, internal/index).
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fsvxavier/apotheosis/internal/config"
	"github.com/fsvxavier/apotheosis/internal/obslog"
	"github.com/fsvxavier/apotheosis/internal/version"
)

var (
	cfgFile string
	cfg     config.IndexConfig
)

var rootCmd = &cobra.Command{
	Use:   "apotheosis",
	Short: "Similarity-search index over fuzzy-hash fingerprints",
	Long: `apotheosis drives an HNSW similarity-search index over fuzzy-hash
fingerprints (TLSH, ssdeep).

Configuration is resolved, in ascending priority, from built-in defaults,
an optional YAML file (--config, key snapshot_path among others), a .env
file in the working directory, and process environment variables
(APOTHEOSIS_SNAPSHOT_PATH, APOTHEOSIS_METRIC, APOTHEOSIS_M, ...).

Examples:
  APOTHEOSIS_SNAPSHOT_PATH=index.apo apotheosis insert --id T1...
  APOTHEOSIS_SNAPSHOT_PATH=index.apo apotheosis search --id T1... --k 10
  APOTHEOSIS_SNAPSHOT_PATH=index.apo apotheosis stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version.VERSION,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to an apotheosis.yaml overlay")
	cobra.OnInitialize(initConfig, initLogging)
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		cobra.CheckErr(fmt.Errorf("apotheosis: load config: %w", err))
		return
	}
	cfg = loaded
}

// initLogging installs the global logger at warn level with an activity
// log attached. Failed operations, logged at error level, enter the
// activity log; successful ones are logged at debug level and are
// filtered out before they reach it.
func initLogging() {
	logCfg := obslog.DefaultConfig()
	logCfg.Level = slog.LevelWarn
	obslog.InitWithActivityLog(logCfg, 1000)
}
