package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshrun/internal/render"
	"github.com/yoanbernabeu/sshrun/internal/runner"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <target> <command> [<command>...]",
		Short: "Run commands and print their collected output",
		Long: `Runs each command in its own exec channel over a single SSH connection,
then prints the output of every command in the order given.

The target is a saved host alias or [user@]host[:port].

Example:
  sshrun run root@10.0.0.5 uptime "df -h /"
  sshrun run web1 --workdir /srv/app "git log -1" "ls" -o yaml
  SSHRUN_PASSWORD=secret sshrun run deploy@web1:2222 "systemctl status nginx"`,
		Args: cobra.MinimumNArgs(2),
		RunE: a.runRun,
	}
}

func (a *app) runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	commands := args[1:]

	for _, c := range commands {
		if err := security.ValidateCommand(c); err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
	}

	r, s, err := a.ConnectToTarget(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.shutdown(r)

	var runErr error
	for _, c := range commands {
		full := security.InDir(s.Workdir, c)
		a.PrintVerboseCommand(full)
		if _, err := r.Run(ctx, full); err != nil {
			runErr = fmt.Errorf("failed to run %q: %w", security.SanitizeCommandForLog(c), err)
			break
		}
	}

	if r.Count() == 0 {
		return runErr
	}

	results, collectErr := r.CollectAll(ctx)
	for i := range results {
		results[i].Command = commands[i]
	}

	if err := render.Write(a.stdout, s.Format, results); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if err := errors.Join(runErr, collectErr); err != nil {
		return err
	}
	return firstFailure(results)
}

// firstFailure returns an ExitCodeError for the first command that exited
// non-zero.
func firstFailure(results runner.Results) error {
	for _, res := range results {
		if res.ExitStatus != nil && *res.ExitStatus != 0 {
			return &ExitCodeError{
				Code: *res.ExitStatus,
				Err:  fmt.Errorf("command %d (%s) exited with status %d", res.Seq, security.SanitizeCommandForLog(res.Command), *res.ExitStatus),
			}
		}
	}
	return nil
}

func (a *app) shutdown(r *runner.Runner) {
	if err := r.Shutdown(); err != nil {
		a.PrintVerbose("Shutdown: %v", err)
	}
}
