package security

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

var (
	// hostAliasRegex validates saved host names
	// Allows: letters, numbers, underscores, hyphens
	// Length: 1-64 characters
	hostAliasRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,62}[a-zA-Z0-9])?$`)

	// hostnameRegex validates DNS host names (RFC 1123 labels)
	hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

	// unixUserRegex validates Unix usernames
	// Standard POSIX username rules
	// Length: 1-32 characters
	unixUserRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// sensitiveAssignRegex finds NAME= assignments whose name looks like a secret
	sensitiveAssignRegex = regexp.MustCompile(`(?i)\b[a-z0-9_]*(password|passwd|secret|token|api_key|database_url)[a-z0-9_]*=`)

	// urlCredentialsRegex finds user:password@ in URLs
	urlCredentialsRegex = regexp.MustCompile(`(://[^:/\s@]+:)([^@\s]+)@`)

	// mysqlPasswordRegex finds the -p<password> flag of MySQL client tools
	mysqlPasswordRegex = regexp.MustCompile(`(\b(?:mysql|mysqladmin|mysqldump|mariadb)\b[^|;&]*?\s-p)([^\s-]\S*)`)
)

// MaxCommandLength bounds a single remote command.
const MaxCommandLength = 64 * 1024

// ValidateHostAlias validates the name of a saved host
func ValidateHostAlias(name string) error {
	if name == "" {
		return fmt.Errorf("host alias cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("host alias too long (max 64 characters)")
	}
	if !hostAliasRegex.MatchString(name) {
		return fmt.Errorf("host alias must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateHostname validates a DNS name or an IP address
func ValidateHostname(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	if len(host) > 253 {
		return fmt.Errorf("host too long (max 253 characters)")
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("host must be a DNS name or an IP address")
	}
	return nil
}

// ValidatePort validates a TCP port. Zero means the default port.
func ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, or 0 for the default, got %d", port)
	}
	return nil
}

// ValidateUnixUser validates a Unix username
func ValidateUnixUser(user string) error {
	if user == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(user) > 32 {
		return fmt.Errorf("username too long (max 32 characters)")
	}
	if !unixUserRegex.MatchString(user) {
		return fmt.Errorf("username must start with a lowercase letter or underscore, followed by lowercase letters, numbers, underscores, or hyphens")
	}
	return nil
}

// ValidateCommand validates a remote command. Shell syntax is allowed, the
// command runs in the remote user's shell as written.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if len(command) > MaxCommandLength {
		return fmt.Errorf("command too long (max %d bytes)", MaxCommandLength)
	}
	if strings.ContainsRune(command, 0) {
		return fmt.Errorf("command cannot contain NUL bytes")
	}
	return nil
}

// ValidateRemoteDir validates a directory to change into before a command
func ValidateRemoteDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	if strings.ContainsAny(dir, "\x00\n\r") {
		return fmt.Errorf("directory contains invalid characters: %q", dir)
	}
	return nil
}

// ShellEscape escapes a string for safe use in shell commands by wrapping it
// in single quotes and escaping any internal single quotes using the POSIX
// pattern: ' → '\''
func ShellEscape(s string) string {
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// InDir prefixes command so that it runs in dir.
func InDir(dir, command string) string {
	if dir == "" {
		return command
	}
	return "cd " + ShellEscape(dir) + " && " + command
}

// SanitizeCommandForLog masks sensitive values in commands before logging.
// This prevents secrets from leaking into verbose output or log files.
func SanitizeCommandForLog(cmd string) string {
	result := cmd

	// Replace from the end so earlier indexes stay valid.
	matches := sensitiveAssignRegex.FindAllStringIndex(result, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		valueStart := matches[i][1]
		valueEnd := findValueEnd(result, valueStart)
		if valueEnd == valueStart {
			continue
		}
		result = result[:valueStart] + "****" + result[valueEnd:]
	}

	result = urlCredentialsRegex.ReplaceAllString(result, "${1}****@")
	result = mysqlPasswordRegex.ReplaceAllString(result, "${1}****")

	return result
}

// findValueEnd finds where a shell value ends (handles quoted and unquoted values)
func findValueEnd(s string, start int) int {
	if start >= len(s) {
		return start
	}

	// Handle single-quoted value
	if s[start] == '\'' {
		end := strings.Index(s[start+1:], "'")
		if end == -1 {
			return len(s)
		}
		return start + end + 2
	}

	// Handle double-quoted value
	if s[start] == '"' {
		end := strings.Index(s[start+1:], "\"")
		if end == -1 {
			return len(s)
		}
		return start + end + 2
	}

	// Unquoted: find next whitespace
	for i := start; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == ';' || s[i] == '&' || s[i] == '|' {
			return i
		}
	}
	return len(s)
}
