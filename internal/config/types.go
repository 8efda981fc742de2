package config

import (
	"time"

	"github.com/yoanbernabeu/sshrun/internal/constants"
)

// GlobalConfig represents the global ~/.config/sshrun/config.yaml
type GlobalConfig struct {
	Hosts       map[string]HostConfig `yaml:"hosts"`
	DefaultUser string                `yaml:"default_user,omitempty"`
	DefaultPort int                   `yaml:"default_port,omitempty"`
	// DialTimeout and ReadTimeout are in seconds. A zero ReadTimeout waits forever.
	DialTimeout     int    `yaml:"dial_timeout,omitempty"`
	ReadTimeout     int    `yaml:"read_timeout,omitempty"`
	Concurrency     int    `yaml:"concurrency,omitempty"`
	KnownHosts      string `yaml:"known_hosts,omitempty"`
	InsecureHostKey bool   `yaml:"insecure_host_key,omitempty"`
}

// HostConfig represents a saved host
type HostConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// DefaultGlobalConfig returns a default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Hosts:       make(map[string]HostConfig),
		DefaultPort: constants.DefaultPort,
		DialTimeout: int(constants.DefaultDialTimeout / time.Second),
		Concurrency: constants.DefaultConcurrency,
	}
}

// DialTimeoutDuration returns the dial timeout, falling back to the default.
func (c *GlobalConfig) DialTimeoutDuration() time.Duration {
	if c.DialTimeout <= 0 {
		return constants.DefaultDialTimeout
	}
	return time.Duration(c.DialTimeout) * time.Second
}

// ReadTimeoutDuration returns the per-read timeout. Zero means none.
func (c *GlobalConfig) ReadTimeoutDuration() time.Duration {
	if c.ReadTimeout <= 0 {
		return constants.DefaultReadTimeout
	}
	return time.Duration(c.ReadTimeout) * time.Second
}
