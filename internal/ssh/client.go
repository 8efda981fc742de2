package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// NativeDialer opens transports with golang.org/x/crypto/ssh.
type NativeDialer struct {
	// Timeout bounds the TCP connect and the SSH handshake.
	Timeout time.Duration

	// HostKeyCallback verifies the server key. DefaultHostKeyCallback is
	// used when nil.
	HostKeyCallback ssh.HostKeyCallback

	Logger zerolog.Logger
}

// Dial connects to addr over TCP. The SSH handshake runs together with
// authentication, since x/crypto/ssh cannot separate the two.
func (d *NativeDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	hostKeyCallback := d.HostKeyCallback
	if hostKeyCallback == nil {
		cb, err := DefaultHostKeyCallback()
		if err != nil {
			return nil, fmt.Errorf("host key verification failed: %w", err)
		}
		hostKeyCallback = cb
	}

	t := &nativeTransport{
		addr:            addr,
		timeout:         d.Timeout,
		hostKeyCallback: hostKeyCallback,
		log:             d.Logger,
	}
	if err := t.dial(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

type nativeTransport struct {
	addr            string
	timeout         time.Duration
	hostKeyCallback ssh.HostKeyCallback
	log             zerolog.Logger

	// conn is the raw connection waiting for a handshake. It is nil once
	// the handshake consumed it.
	conn   net.Conn
	client *ssh.Client
}

func (t *nativeTransport) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: t.timeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *nativeTransport) Authenticate(ctx context.Context, user, secret string) error {
	if t.client != nil {
		return errors.New("already authenticated")
	}
	// A failed handshake closes the connection it ran on.
	if t.conn == nil {
		if err := t.dial(ctx); err != nil {
			return err
		}
	}
	conn := t.conn
	t.conn = nil

	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(secret),
		},
		HostKeyCallback: t.hostKeyCallback,
		Timeout:         t.timeout,
	}

	if deadline, ok := handshakeDeadline(ctx, t.timeout); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	c, chans, reqs, err := ssh.NewClientConn(conn, t.addr, config)
	if !stop() {
		if err == nil {
			_ = c.Close()
		}
		return ctx.Err()
	}
	if err != nil {
		if isAuthFailure(err) {
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return err
	}

	_ = conn.SetDeadline(time.Time{})
	t.client = ssh.NewClient(c, chans, reqs)
	t.log.Debug().Str("addr", t.addr).Str("server_version", string(c.ServerVersion())).Msg("handshake complete")
	return nil
}

func (t *nativeTransport) Exec(ctx context.Context, command string) (Stream, error) {
	if t.client == nil {
		return nil, errors.New("not authenticated")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// NewSession waits for the server to confirm the channel and takes no
	// context.
	type opened struct {
		session *ssh.Session
		err     error
	}
	client := t.client
	res := make(chan opened, 1)
	go func() {
		session, err := client.NewSession()
		res <- opened{session, err}
	}()

	var session *ssh.Session
	select {
	case o := <-res:
		if o.err != nil {
			return nil, fmt.Errorf("failed to create session: %w", o.err)
		}
		session = o.session
	case <-ctx.Done():
		go func() {
			if o := <-res; o.err == nil {
				_ = o.session.Close()
			}
		}()
		return nil, ctx.Err()
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := session.Start(command); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	return &nativeStream{session: session, stdout: stdout}, nil
}

func (t *nativeTransport) Close() error {
	var errs []error
	if t.client != nil {
		if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		t.client = nil
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		t.conn = nil
	}
	return errors.Join(errs...)
}

// handshakeDeadline returns the earlier of the dial timeout and the context
// deadline.
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); !ok || d.Before(deadline) {
			return d, true
		}
	}
	return deadline, ok
}

// isAuthFailure reports whether a handshake error is a credential rejection.
// x/crypto/ssh exposes no typed error for it.
func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

type nativeStream struct {
	session *ssh.Session
	stdout  io.Reader
}

func (s *nativeStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *nativeStream) Wait() (int, error) {
	err := s.session.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return -1, ErrNoExitStatus
	}
	return -1, err
}

func (s *nativeStream) Close() error {
	err := s.session.Close()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
