package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/yoanbernabeu/sshrun/internal/config"
	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/render"
	"github.com/yoanbernabeu/sshrun/internal/security"
	"github.com/yoanbernabeu/sshrun/internal/ssh"
)

// settings is everything needed to reach a target and print its output.
// Each value comes from the first of: flag, SSHRUN_* variable, config file,
// built-in default.
type settings struct {
	Target          config.Target
	Password        string
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	Concurrency     int
	Format          render.Format
	Workdir         string
	HostKeyCallback gossh.HostKeyCallback
}

// resolveSettings builds the settings for targetSpec. The password is not
// read here.
func (a *app) resolveSettings(targetSpec string) (*settings, error) {
	global, err := a.loadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}

	target, err := global.ResolveTarget(targetSpec)
	if err != nil {
		return nil, err
	}

	if a.v.IsSet("user") {
		user := a.v.GetString("user")
		if err := security.ValidateUnixUser(user); err != nil {
			return nil, fmt.Errorf("invalid user: %w", err)
		}
		target.User = user
	}
	if target.User == "" {
		return nil, fmt.Errorf("no user for %s: use user@host, --user, %s or default_user in the config file", targetSpec, envKey("user"))
	}

	if a.v.IsSet("port") {
		port := a.v.GetInt("port")
		if port == 0 {
			port = constants.DefaultPort
		}
		if err := security.ValidatePort(port); err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		target.Port = port
	}

	s := &settings{
		Target:      target,
		DialTimeout: global.DialTimeoutDuration(),
		ReadTimeout: global.ReadTimeoutDuration(),
		Concurrency: global.Concurrency,
	}

	if a.v.IsSet("dial-timeout") {
		s.DialTimeout = a.v.GetDuration("dial-timeout")
	}
	if a.v.IsSet("timeout") {
		s.ReadTimeout = a.v.GetDuration("timeout")
	}
	if s.DialTimeout <= 0 {
		return nil, fmt.Errorf("dial timeout must be positive")
	}
	if s.ReadTimeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}

	if a.v.IsSet("concurrency") {
		s.Concurrency = a.v.GetInt("concurrency")
	}
	if s.Concurrency == 0 {
		s.Concurrency = constants.DefaultConcurrency
	}
	if s.Concurrency < 1 || s.Concurrency > constants.MaxConcurrency {
		return nil, fmt.Errorf("concurrency must be between 1 and %d", constants.MaxConcurrency)
	}

	if s.Format, err = render.ParseFormat(a.v.GetString("format")); err != nil {
		return nil, err
	}

	if dir := a.v.GetString("workdir"); dir != "" {
		if err := security.ValidateRemoteDir(dir); err != nil {
			return nil, fmt.Errorf("invalid workdir: %w", err)
		}
		s.Workdir = dir
	}

	if s.HostKeyCallback, err = a.hostKeyCallback(global); err != nil {
		return nil, err
	}

	return s, nil
}

// hostKeyCallback returns nil when the default known_hosts lookup applies.
func (a *app) hostKeyCallback(global *config.GlobalConfig) (gossh.HostKeyCallback, error) {
	insecure := global.InsecureHostKey
	if a.v.IsSet("insecure") {
		insecure = a.v.GetBool("insecure")
	}
	if insecure {
		a.PrintWarning("Host key verification is disabled")
		return gossh.InsecureIgnoreHostKey(), nil
	}

	path := global.KnownHosts
	if a.v.IsSet("known-hosts") {
		path = a.v.GetString("known-hosts")
	}
	if path == "" {
		return nil, nil
	}

	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	return ssh.KnownHostsCallback(path)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
