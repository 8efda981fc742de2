package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/yoanbernabeu/sshrun/internal/config"
)

var errNoPassword = errors.New("no password: use --password-stdin, SSHRUN_PASSWORD or run interactively")

// readSecret returns the password for target from, in order: stdin when
// --password-stdin is set, --password or SSHRUN_PASSWORD, an interactive
// prompt.
func (a *app) readSecret(target config.Target) (string, error) {
	if a.v.GetBool("password-stdin") {
		reader := bufio.NewReader(a.stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if a.v.IsSet("password") {
		if a.cmdLineFlag("password") {
			a.PrintVerbose("Password given on the command line, prefer %s", envKey("password"))
		}
		return a.v.GetString("password"), nil
	}

	if !a.isTerminal() {
		return "", errNoPassword
	}

	fmt.Fprintf(a.stderr, "%s's password: ", target)
	secret, err := a.readPassword()
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

// cmdLineFlag reports whether name was given as a flag rather than through
// the environment.
func (a *app) cmdLineFlag(name string) bool {
	return os.Getenv(envKey(name)) == ""
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func readTerminalPassword() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}
