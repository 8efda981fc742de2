package cmd

import (
	"context"
	"fmt"

	"github.com/yoanbernabeu/sshrun/internal/logging"
	"github.com/yoanbernabeu/sshrun/internal/runner"
	"github.com/yoanbernabeu/sshrun/internal/ssh"
)

// ConnectToTarget resolves targetSpec, reads the password and returns a
// logged-in runner. The caller must defer r.Shutdown().
func (a *app) ConnectToTarget(ctx context.Context, targetSpec string) (*runner.Runner, *settings, error) {
	s, err := a.resolveSettings(targetSpec)
	if err != nil {
		return nil, nil, err
	}

	s.Password, err = a.readSecret(s.Target)
	if err != nil {
		return nil, nil, err
	}

	opts := []ssh.Option{
		ssh.WithDialTimeout(s.DialTimeout),
		ssh.WithReadTimeout(s.ReadTimeout),
	}
	if s.HostKeyCallback != nil {
		opts = append(opts, ssh.WithHostKeyCallback(s.HostKeyCallback))
	}

	r := runner.New(
		runner.WithLogger(logging.Component("runner")),
		runner.WithConcurrency(s.Concurrency),
		runner.WithSessionOptions(opts...),
	)

	a.PrintVerbose("Connecting to %s", s.Target)
	if err := r.Login(ctx, s.Target.User, s.Password, s.Target.Host, s.Target.Port); err != nil {
		_ = r.Shutdown()
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", s.Target, err)
	}

	return r, s, nil
}
