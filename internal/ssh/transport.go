package ssh

import (
	"context"
	"io"
)

// Dialer opens a Transport to a single remote address (host:port).
type Dialer interface {
	Dial(ctx context.Context, addr string) (Transport, error)
}

// Transport is an established connection to one remote host.
//
// A Session owns its Transport exclusively and serializes every call to it.
type Transport interface {
	// Authenticate performs password authentication. A rejected credential
	// must be reported with an error wrapping ErrAuthentication, and the
	// Transport must accept a further Authenticate call afterwards.
	Authenticate(ctx context.Context, user, secret string) error

	// Exec starts command in a new channel and returns its output stream.
	Exec(ctx context.Context, command string) (Stream, error)

	// Close releases the connection.
	Close() error
}

// Stream is the stdout of one remote command.
type Stream interface {
	io.Reader

	// Wait blocks until the remote command has exited and returns its exit
	// status. It returns ErrNoExitStatus when the remote side closed the
	// channel without reporting one. Wait is called once, after Read has
	// returned io.EOF.
	Wait() (int, error)

	// Close abandons the stream.
	Close() error
}
