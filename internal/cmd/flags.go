package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yoanbernabeu/sshrun/internal/constants"
)

// bindFlags registers the persistent flags and binds each one to viper, so
// that SSHRUN_<FLAG> environment variables act as defaults.
func (a *app) bindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()

	// Global
	flags.BoolP("verbose", "v", false, "Show detailed logs")
	flags.String("config", "", "Config file (default: $XDG_CONFIG_HOME/sshrun/config.yaml)")
	flags.String("log-format", "console", "Log format (console, json)")

	// Connection
	flags.IntP("port", "p", 0, "SSH port (default: from target, config or 22)")
	flags.StringP("user", "u", "", "SSH user (default: from target or config)")
	flags.String("password", "", "SSH password (or set SSHRUN_PASSWORD)")
	flags.Bool("password-stdin", false, "Read the password from the first line of stdin")
	flags.Duration("timeout", 0, "Per-read timeout, e.g. 30s (0 waits forever)")
	flags.Duration("dial-timeout", constants.DefaultDialTimeout, "Connection and handshake timeout")
	flags.String("known-hosts", "", "Path to a known_hosts file (default: ~/.ssh/known_hosts)")
	flags.Bool("insecure", false, "Skip host key verification")

	// Output
	flags.Int("concurrency", constants.DefaultConcurrency, "Number of command outputs read at once")
	flags.StringP("format", "o", "text", "Output format (text, yaml, html)")
	flags.StringP("workdir", "w", "", "Remote directory to run commands in")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = a.v.BindPFlag(f.Name, f)
	})

	a.v.SetEnvPrefix(constants.EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
}
