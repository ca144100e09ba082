// Root command for the cupboard CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/nosqlprovider-go/cupboard/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
	flagVerbose   bool
)

// configDataDir, configBackend, configSQLEngine and configNativeFTS hold
// values loaded from config.yaml. Set by PersistentPreRunE so every
// subcommand can use them.
var (
	configDataDir   string
	configBackend   string
	configSQLEngine string
	configNativeFTS bool
)

var rootCmd = &cobra.Command{
	Use:     "cupboard",
	Short:   "Cupboard is a backend-agnostic indexed object store",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configBackend = cfg.GetString(cfgKeyBackend)
		configSQLEngine = cfg.GetString(cfgKeySQLEngine)
		configNativeFTS = cfg.GetBool(cfgKeyNativeFTS)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.cupboard-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log migration and backend activity")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(migrateCheckCmd)
	rootCmd.AddCommand(statsCmd)
}

// resolveDataDir returns the data directory following the precedence chain:
// --data-dir flag > config.yaml data_dir > CUPBOARD_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence chain: --config-dir flag > CUPBOARD_CONFIG_DIR env > default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
