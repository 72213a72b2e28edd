// Package config loads voxnote settings from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"data_dir":    "data-dir",
	"socket_path": "socket",
	"locale":      "locale",
}

type Config struct {
	// DataDir holds the database, recorded audio and the TUI log.
	DataDir    string `mapstructure:"data_dir"`
	SocketPath string `mapstructure:"socket_path"`
	Locale     string `mapstructure:"locale"`
	LogFile    string `mapstructure:"log_file"`
}

// AudioDir is where recordings are written.
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "audio")
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return ".voxnote"
	}
	return filepath.Join(configDir, "voxnote")
}

// Load reads configFile, or config.yaml from the default search paths when
// configFile is empty. A missing file yields the defaults. Flags named
// data-dir, socket and locale in flags take precedence over the file when set.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/voxnote")
	}

	dataDir := DefaultDataDir()
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("locale", "en_US")

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s flag: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	cfg.applyDerivedDefaults()
	return &cfg, nil
}

// applyDerivedDefaults fills paths that depend on DataDir.
func (c *Config) applyDerivedDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "voxnote.sock")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "voxnote.log")
	}
}
