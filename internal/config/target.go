package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

// Target is where commands run: a saved host or an ad-hoc [user@]host[:port].
type Target struct {
	// Alias is set when the target came from a saved host.
	Alias string
	User  string
	Host  string
	Port  int
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	if t.User == "" {
		return t.Addr()
	}
	return t.User + "@" + t.Addr()
}

// ParseTarget parses [user@]host[:port]. IPv6 addresses need brackets when a
// port is given.
func ParseTarget(spec string) (Target, error) {
	var t Target
	if spec == "" {
		return t, fmt.Errorf("target cannot be empty")
	}

	hostPart := spec
	if user, rest, ok := strings.Cut(spec, "@"); ok {
		if err := security.ValidateUnixUser(user); err != nil {
			return t, fmt.Errorf("invalid target %q: %w", spec, err)
		}
		t.User = user
		hostPart = rest
	}

	switch {
	case strings.HasPrefix(hostPart, "[") && strings.Contains(hostPart, "]:"):
		host, port, err := net.SplitHostPort(hostPart)
		if err != nil {
			return t, fmt.Errorf("invalid target %q: %w", spec, err)
		}
		t.Host = host
		if t.Port, err = parsePort(port); err != nil {
			return t, fmt.Errorf("invalid target %q: %w", spec, err)
		}
	case strings.HasPrefix(hostPart, "["):
		t.Host = strings.TrimSuffix(strings.TrimPrefix(hostPart, "["), "]")
	case strings.Count(hostPart, ":") == 1:
		host, port, err := net.SplitHostPort(hostPart)
		if err != nil {
			return t, fmt.Errorf("invalid target %q: %w", spec, err)
		}
		t.Host = host
		if t.Port, err = parsePort(port); err != nil {
			return t, fmt.Errorf("invalid target %q: %w", spec, err)
		}
	default:
		t.Host = hostPart
	}

	if err := security.ValidateHostname(t.Host); err != nil {
		return t, fmt.Errorf("invalid target %q: %w", spec, err)
	}
	return t, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port == 0 {
		return 0, fmt.Errorf("port must be between 1 and 65535, got 0")
	}
	if err := security.ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

// ResolveTarget looks spec up as a saved host alias, then parses it as
// [user@]host[:port]. Missing user and port come from the config defaults.
func (c *GlobalConfig) ResolveTarget(spec string) (Target, error) {
	var t Target
	if hc, ok := c.Hosts[spec]; ok {
		t = Target{Alias: spec, User: hc.User, Host: hc.Host, Port: hc.Port}
	} else {
		parsed, err := ParseTarget(spec)
		if err != nil {
			return t, err
		}
		t = parsed
	}

	if t.User == "" {
		t.User = c.DefaultUser
	}
	if t.Port == 0 {
		t.Port = c.DefaultPort
	}
	if t.Port == 0 {
		t.Port = constants.DefaultPort
	}
	return t, nil
}
