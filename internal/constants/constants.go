package constants

import (
	"path/filepath"
	"time"
)

// Connection defaults
const (
	DefaultPort        = 22
	DefaultDialTimeout = 30 * time.Second
	// DefaultReadTimeout of zero waits for each line without limit.
	DefaultReadTimeout = 0
)

// Output collection defaults
const (
	DefaultConcurrency = 1
	MaxConcurrency     = 64
	MaxLineSize        = 1 << 20
)

// Configuration locations and environment
const (
	ConfigDirName  = "sshrun"
	ConfigFileName = "config.yaml"
	EnvPrefix      = "SSHRUN"
)

// ConfigPath returns the config file path under a user config directory.
func ConfigPath(userConfigDir string) string {
	return filepath.Join(userConfigDir, ConfigDirName, ConfigFileName)
}

// KnownHostsPath returns the default known_hosts path under a home directory.
func KnownHostsPath(homeDir string) string {
	return filepath.Join(homeDir, ".ssh", "known_hosts")
}
