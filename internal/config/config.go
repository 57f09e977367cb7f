// Package config loads engine-wide defaults: checksum algorithm name,
// snapshot-policy thresholds, default partition id, and load mode. It
// searches a project file, then the user config dir, then the home dir
// (walking up from cwd), with environment variables taking precedence
// over whichever file is found.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Settings is the resolved engine configuration after Initialize.
type Settings struct {
	ChecksumAlgo       string
	SnapshotThreshold  int // the ">N" in commits*5+edits > N
	DefaultPartitionId uint64
	FastLoad           bool
	LockTimeout        time.Duration
}

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup; safe to call again to reload.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD to find project .partitionstore/config.yaml.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".partitionstore", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/partitionstore/config.yaml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "partitionstore", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.partitionstore/config.yaml).
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".partitionstore", "config.yaml")
			if _, statErr := os.Stat(configPath); statErr == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("PARTITIONSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("checksum-algo", "BLAKE2 16")
	v.SetDefault("snapshot.threshold", 150)
	v.SetDefault("partition.default-id", 1)
	v.SetDefault("load.fast", true)
	v.SetDefault("lock-timeout", "30s")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Resolve reads the current viper state into a Settings value. Initialize
// must have been called first.
func Resolve() Settings {
	return Settings{
		ChecksumAlgo:       GetString("checksum-algo"),
		SnapshotThreshold:  GetInt("snapshot.threshold"),
		DefaultPartitionId: uint64(GetInt("partition.default-id")),
		FastLoad:           GetBool("load.fast"),
		LockTimeout:        GetDuration("lock-timeout"),
	}
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value at runtime (e.g. from a CLI flag).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}
