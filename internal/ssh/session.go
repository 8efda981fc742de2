// Package ssh runs commands on a remote host over a password-authenticated
// SSH connection.
//
// A Session owns one Transport and moves forward through Unconnected,
// Connected, Authenticated and Closed. Each command runs in its own Channel,
// whose output is read line by line.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is an authenticated binding over a Transport, capable of opening
// Channels. All Transport calls are serialized by the session mutex; reads
// on already opened channels are not.
type Session struct {
	mu sync.Mutex

	opts   options
	dialer Dialer
	log    zerolog.Logger

	state     State
	current   atomic.Int32 // mirrors state for State()
	closing   chan struct{}
	closeOnce sync.Once
	addr      string
	user      string
	transport Transport
	channels  []*Channel
}

// NewSession creates an unconnected Session.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = &NativeDialer{
			Timeout:         o.dialTimeout,
			HostKeyCallback: o.hostKeyCallback,
			Logger:          o.logger,
		}
	}

	return &Session{
		opts:    o,
		dialer:  dialer,
		log:     o.logger,
		closing: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
// It does not wait for an in-flight transport call.
func (s *Session) State() State {
	return State(s.current.Load())
}

func (s *Session) setState(state State) {
	s.state = state
	s.current.Store(int32(state))
}

// Addr returns the host:port the session connected to, or "" before Connect.
func (s *Session) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Connect establishes the Transport to host:port. A zero port means 22.
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnconnected {
		return &StateError{Op: "connect", State: s.state}
	}
	if host == "" {
		return fmt.Errorf("%w: host is required", ErrConnection)
	}
	if port == 0 {
		port = constants.DefaultPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.log.Debug().Str("addr", addr).Msg("connecting")

	transport, err := s.dialer.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnection, addr, err)
	}

	s.addr = addr
	s.transport = transport
	s.setState(StateConnected)
	return nil
}

// Authenticate performs password authentication. On rejection the session
// stays Connected and may be authenticated again.
func (s *Session) Authenticate(ctx context.Context, user, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return &StateError{Op: "authenticate", State: s.state}
	}

	if err := s.transport.Authenticate(ctx, user, secret); err != nil {
		if errors.Is(err, ErrAuthentication) {
			s.log.Warn().Str("addr", s.addr).Str("user", user).Msg("authentication rejected")
			return fmt.Errorf("%s@%s: %w", user, s.addr, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrConnection, s.addr, err)
	}

	s.user = user
	s.setState(StateAuthenticated)
	s.log.Debug().Str("addr", s.addr).Str("user", user).Msg("authenticated")
	return nil
}

// OpenChannel starts command in a new channel.
func (s *Session) OpenChannel(ctx context.Context, command string) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return nil, &StateError{Op: "open channel", State: s.state}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	stream, err := s.transport.Exec(ctx, command)
	if err != nil {
		select {
		case <-s.closing:
			err = ErrClosed
		default:
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrChannel, security.SanitizeCommandForLog(command), err)
	}

	ch := newChannel(s, command, stream)
	s.channels = append(s.channels, ch)
	s.log.Debug().Str("command", security.SanitizeCommandForLog(command)).Int("open_channels", len(s.channels)).Msg("channel opened")
	return ch, nil
}

// Close closes every channel, then releases the Transport. Calling Close
// again is a no-op.
func (s *Session) Close() error {
	// Interrupt a channel open that holds the lock.
	s.closeOnce.Do(func() { close(s.closing) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.setState(StateClosed)

	var errs []error
	for _, ch := range s.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.channels = nil

	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			errs = append(errs, err)
		}
		s.transport = nil
	}

	s.log.Debug().Str("addr", s.addr).Msg("session closed")
	return errors.Join(errs...)
}
