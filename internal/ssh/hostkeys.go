package ssh

import (
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yoanbernabeu/sshrun/internal/constants"
)

// Environment variables read by DefaultHostKeyCallback.
const (
	EnvKnownHostsContent = constants.EnvPrefix + "_KNOWN_HOSTS_CONTENT"
	EnvSkipHostKeyCheck  = constants.EnvPrefix + "_SKIP_HOST_KEY_CHECK"
)

// KnownHostsCallback builds a callback from a known_hosts file.
func KnownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("known_hosts file not found at %s: %w", path, err)
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}
	return callback, nil
}

// DefaultHostKeyCallback returns the host key callback used when none is
// configured. In order: known_hosts content from the environment, the skip
// switch from the environment, then ~/.ssh/known_hosts.
func DefaultHostKeyCallback() (ssh.HostKeyCallback, error) {
	if content := os.Getenv(EnvKnownHostsContent); content != "" {
		// knownhosts.New only reads files.
		tmpFile, err := os.CreateTemp("", "known_hosts")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp known_hosts: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(content); err != nil {
			tmpFile.Close()
			return nil, fmt.Errorf("failed to write temp known_hosts: %w", err)
		}
		tmpFile.Close()

		callback, err := knownhosts.New(tmpFile.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", EnvKnownHostsContent, err)
		}
		return callback, nil
	}

	if os.Getenv(EnvSkipHostKeyCheck) == "true" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	callback, err := KnownHostsCallback(constants.KnownHostsPath(homeDir))
	if err != nil {
		return nil, fmt.Errorf("%w (set %s, or %s=true to skip verification)",
			err, EnvKnownHostsContent, EnvSkipHostKeyCheck)
	}
	return callback, nil
}
