package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yoanbernabeu/sshrun/internal/config"
	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/logging"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

// Version is set at build time
var Version = "dev"

// ExitCodeError carries the exit status of a failed remote command.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// app holds the state shared by one command tree.
type app struct {
	v *viper.Viper

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// isTerminal and readPassword are replaced in tests.
	isTerminal   func() bool
	readPassword func() ([]byte, error)
}

var rootCmd = NewRootCmd()

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelling remote reads
// when ctx is done
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command, for documentation generation
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newApp() *app {
	return &app{
		v:            viper.New(),
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		isTerminal:   stdinIsTerminal,
		readPassword: readTerminalPassword,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sshrun",
		Short: "Run commands on a remote host over SSH",
		Long: `sshrun opens one SSH connection to a host, authenticates with a
password, runs one or more commands as separate exec channels and prints
their output in the order the commands were given.

Quick start:
  sshrun run root@web1 uptime "df -h"
  sshrun exec web1 "tail -n 100 /var/log/syslog"
  sshrun host add web1 deploy@web1.example.com:2222

Commands:
  run           Run commands and print the collected output
  exec          Run one command and stream its output
  host          Manage saved hosts

Environment Variables:
  SSHRUN_PASSWORD               SSH password
  SSHRUN_USER                   Default SSH user
  SSHRUN_KNOWN_HOSTS            Path to a known_hosts file
  SSHRUN_KNOWN_HOSTS_CONTENT    known_hosts content (CI/CD)
  SSHRUN_SKIP_HOST_KEY_CHECK    Skip host key verification (true/false)
  SSHRUN_<FLAG>                 Any other flag, dashes as underscores`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initLogging()
		},
	}
	root.SetVersionTemplate(`sshrun {{.Version}}
`)

	a.bindFlags(root)

	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newExecCmd())
	root.AddCommand(a.newHostCmd())
	return root
}

func (a *app) initLogging() {
	cfg := logging.DefaultConfig()
	cfg.Output = a.stderr
	if a.IsVerbose() {
		cfg.Level = "debug"
	}
	if f := a.v.GetString("log-format"); f != "" {
		cfg.Format = f
	}
	logging.Init(cfg)
}

// IsVerbose returns true if verbose mode is enabled
func (a *app) IsVerbose() bool {
	return a.v.GetBool("verbose")
}

// GetConfigFile returns the config file path, empty for the default location
func (a *app) GetConfigFile() string {
	return a.v.GetString("config")
}

func (a *app) loadGlobalConfig() (*config.GlobalConfig, error) {
	if path := a.GetConfigFile(); path != "" {
		return config.LoadGlobalConfigFrom(path)
	}
	return config.LoadGlobalConfig()
}

func (a *app) saveGlobalConfig(cfg *config.GlobalConfig) error {
	if path := a.GetConfigFile(); path != "" {
		return config.SaveGlobalConfigTo(path, cfg)
	}
	return config.SaveGlobalConfig(cfg)
}

// envKey returns the environment variable bound to a flag.
func envKey(flag string) string {
	return constants.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// PrintSuccess prints a success message
func (a *app) PrintSuccess(msg string, args ...interface{}) {
	fmt.Fprintf(a.stdout, "✅ "+msg+"\n", args...)
}

// PrintInfo prints an info message
func (a *app) PrintInfo(msg string, args ...interface{}) {
	fmt.Fprintf(a.stdout, "ℹ️  "+msg+"\n", args...)
}

// PrintWarning prints a warning message on stderr, keeping stdout for command output
func (a *app) PrintWarning(msg string, args ...interface{}) {
	fmt.Fprintf(a.stderr, "⚠️  "+msg+"\n", args...)
}

// PrintVerbose prints a message only in verbose mode
func (a *app) PrintVerbose(msg string, args ...interface{}) {
	if a.IsVerbose() {
		fmt.Fprintf(a.stderr, "   "+msg+"\n", args...)
	}
}

// PrintVerboseCommand prints a command in verbose mode with sensitive values masked
func (a *app) PrintVerboseCommand(command string) {
	if a.IsVerbose() {
		fmt.Fprintf(a.stderr, "   Running: %s\n", security.SanitizeCommandForLog(command))
	}
}
