package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yoanbernabeu/sshrun/internal/constants"
)

// GetGlobalConfigPath returns the path to the global config file
func GetGlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return constants.ConfigPath(configDir), nil
}

// LoadGlobalConfig loads the global configuration from its default location
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadGlobalConfigFrom(path)
}

// LoadGlobalConfigFrom loads the global configuration from path. A missing
// file yields the defaults.
func LoadGlobalConfigFrom(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	config := DefaultGlobalConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse global config: %w", err)
	}

	if config.Hosts == nil {
		config.Hosts = make(map[string]HostConfig)
	}

	if errs := ValidateGlobalConfig(config); errs.HasErrors() {
		return nil, fmt.Errorf("invalid global config %s: %w", path, errs)
	}

	return config, nil
}

// SaveGlobalConfig saves the global configuration to its default location
func SaveGlobalConfig(config *GlobalConfig) error {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return err
	}
	return SaveGlobalConfigTo(path, config)
}

// SaveGlobalConfigTo saves the global configuration to path
func SaveGlobalConfigTo(path string, config *GlobalConfig) error {
	dir := filepath.Dir(path)
	// SECURITY: Use 0700 to restrict directory access to owner only
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// SECURITY: Use 0600 to restrict file access to owner only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}

	return nil
}

// GetHost retrieves a saved host by alias
func (c *GlobalConfig) GetHost(alias string) (*HostConfig, error) {
	host, ok := c.Hosts[alias]
	if !ok {
		return nil, fmt.Errorf("host '%s' not found", alias)
	}
	return &host, nil
}

// AddHost adds a new host to the configuration
func (c *GlobalConfig) AddHost(alias string, host HostConfig) error {
	if _, exists := c.Hosts[alias]; exists {
		return fmt.Errorf("host '%s' already exists", alias)
	}

	if host.Port == 0 {
		host.Port = c.DefaultPort
		if host.Port == 0 {
			host.Port = constants.DefaultPort
		}
	}

	if c.Hosts == nil {
		c.Hosts = make(map[string]HostConfig)
	}
	c.Hosts[alias] = host
	return nil
}

// RemoveHost removes a host from the configuration
func (c *GlobalConfig) RemoveHost(alias string) error {
	if _, exists := c.Hosts[alias]; !exists {
		return fmt.Errorf("host '%s' not found", alias)
	}

	delete(c.Hosts, alias)
	return nil
}

// ListHosts returns all host aliases, sorted
func (c *GlobalConfig) ListHosts() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
