// Config loading for the cupboard CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyBackend   = "backend"
	cfgKeySQLEngine = "sql_engine"
	cfgKeyDataDir   = "data_dir"
	cfgKeyNativeFTS = "native_fts"

	// Default backend, SQL engine, and native FTS setting.
	defaultBackend   = "sql"
	defaultSQLEngine = "modernc"
	defaultNativeFTS = false
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Cupboard CLI configuration

# Backend selection: "sql" (SQLite-backed) or "memory" (in-process only).
backend: sql

# SQL engine when backend is "sql": "modernc" (pure Go) or "mattn" (cgo).
sql_engine: modernc

# Use SQLite's fts5 virtual tables for full-text indexes instead of the
# LIKE-fallback column. Only supported with sql_engine "modernc".
native_fts: false

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from the resolved config directory using Viper.
// It creates the config directory and a default config.yaml on first run.
// A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeySQLEngine, defaultSQLEngine)
	v.SetDefault(cfgKeyNativeFTS, defaultNativeFTS)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
