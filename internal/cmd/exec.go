package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshrun/internal/security"
)

func (a *app) newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <target> <command>",
		Short: "Run one command and stream its output",
		Long: `Runs a single command and prints each output line as soon as it arrives.
The remote exit status becomes the exit status of sshrun.

Arguments after the target are joined with spaces.

Example:
  sshrun exec web1 tail -n 100 /var/log/nginx/error.log
  sshrun exec root@10.0.0.5 --timeout 30s "journalctl -f -u app"`,
		Args: cobra.MinimumNArgs(2),
		RunE: a.runExec,
	}
}

func (a *app) runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	command := strings.Join(args[1:], " ")

	if err := security.ValidateCommand(command); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	r, s, err := a.ConnectToTarget(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.shutdown(r)

	full := security.InDir(s.Workdir, command)
	a.PrintVerboseCommand(full)
	seq, err := r.Run(ctx, full)
	if err != nil {
		return fmt.Errorf("failed to run %q: %w", security.SanitizeCommandForLog(command), err)
	}

	// Execute and stream output
	if _, err := r.Stream(ctx, seq, func(line string) {
		fmt.Fprintln(a.stdout, line)
	}); err != nil {
		return err
	}

	if status, ok, _ := r.Status(seq); ok && status != 0 {
		return &ExitCodeError{
			Code: status,
			Err:  fmt.Errorf("command exited with status %d", status),
		}
	}
	return nil
}
