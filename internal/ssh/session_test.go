package ssh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFakeSession(t *testing.T, opts ...Option) (*Session, *fakeDialer, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport("password")
	dialer := &fakeDialer{transport: transport}
	s := NewSession(append([]Option{WithDialer(dialer)}, opts...)...)
	return s, dialer, transport
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnconnected, "unconnected"},
		{StateConnected, "connected"},
		{StateAuthenticated, "authenticated"},
		{StateClosed, "closed"},
		{State(42), "unknown(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestConnect_DefaultPort(t *testing.T) {
	s, dialer, _ := newFakeSession(t)

	require.NoError(t, s.Connect(context.Background(), "example.com", 0))
	require.Equal(t, "example.com:22", dialer.addr)
	require.Equal(t, "example.com:22", s.Addr())
	require.Equal(t, StateConnected, s.State())
}

func TestConnect_IPv6Address(t *testing.T) {
	s, dialer, _ := newFakeSession(t)

	require.NoError(t, s.Connect(context.Background(), "::1", 2222))
	require.Equal(t, "[::1]:2222", dialer.addr)
}

func TestConnect_Twice(t *testing.T) {
	s, dialer, _ := newFakeSession(t)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx, "example.com", 22))
	err := s.Connect(ctx, "example.com", 22)
	require.ErrorIs(t, err, ErrInvalidState)

	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, "connect", stateErr.Op)
	require.Equal(t, 1, dialer.dials())
}

func TestConnect_Unreachable(t *testing.T) {
	s, dialer, _ := newFakeSession(t)
	dialer.err = errors.New("connection refused")

	err := s.Connect(context.Background(), "example.com", 22)
	require.ErrorIs(t, err, ErrConnection)
	require.Contains(t, err.Error(), "connection refused")
	require.Equal(t, StateUnconnected, s.State())
}

func TestConnect_EmptyHost(t *testing.T) {
	s, dialer, _ := newFakeSession(t)

	err := s.Connect(context.Background(), "", 22)
	require.ErrorIs(t, err, ErrConnection)
	require.Zero(t, dialer.dials())
}

func TestAuthenticate_BeforeConnect(t *testing.T) {
	s, dialer, transport := newFakeSession(t)

	err := s.Authenticate(context.Background(), "root", "password")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, dialer.dials())
	require.Zero(t, transport.authCalls)
	require.Equal(t, StateUnconnected, s.State())
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))

	err := s.Authenticate(ctx, "root", "wrong")
	require.ErrorIs(t, err, ErrAuthentication)
	require.NotErrorIs(t, err, ErrConnection)
	require.Equal(t, StateConnected, s.State())

	_, err = s.OpenChannel(ctx, "echo hello")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, transport.opened)

	require.NoError(t, s.Authenticate(ctx, "root", "password"))
	require.Equal(t, StateAuthenticated, s.State())
}

func TestAuthenticate_TransportFailure(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	transport.authErr = errors.New("handshake failed: no common algorithm")

	err := s.Authenticate(ctx, "root", "password")
	require.ErrorIs(t, err, ErrConnection)
	require.NotErrorIs(t, err, ErrAuthentication)
	require.Equal(t, StateConnected, s.State())
}

func TestAuthenticate_Twice(t *testing.T) {
	s, _, _ := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))

	require.ErrorIs(t, s.Authenticate(ctx, "root", "password"), ErrInvalidState)
}

func TestOpenChannel_ExecFailure(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))
	transport.execErr = errors.New("administratively prohibited")

	_, err := s.OpenChannel(ctx, "echo hello")
	require.ErrorIs(t, err, ErrChannel)
	require.Contains(t, err.Error(), "administratively prohibited")
}

func TestOpenChannel_SanitizesCommandInError(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))
	transport.execErr = errors.New("refused")

	_, err := s.OpenChannel(ctx, "DB_PASSWORD=hunter2 ./migrate")
	require.ErrorIs(t, err, ErrChannel)
	require.NotContains(t, err.Error(), "hunter2")
}

func TestOpenChannel_ContextCancel(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))
	transport.stallExec()

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := s.OpenChannel(ctx, "echo hello")
	require.ErrorIs(t, err, ErrChannel)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateAuthenticated, s.State())
}

func TestClose_InterruptsStalledOpen(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))
	transport.stallExec()

	errc := make(chan error, 1)
	go func() {
		_, err := s.OpenChannel(ctx, "echo hello")
		errc <- err
	}()
	<-transport.entered

	// State does not wait for the open.
	require.Equal(t, StateAuthenticated, s.State())

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrChannel)
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("OpenChannel did not return after Close")
	}
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	require.Equal(t, StateClosed, s.State())
	require.True(t, transport.isClosed())
}

func TestClose_Cascades(t *testing.T) {
	s, _, transport := newFakeSession(t)
	ctx := context.Background()
	transport.on("echo a", func() *fakeStream { return outputStream("a\n", 0) })
	require.NoError(t, s.Connect(ctx, "example.com", 22))
	require.NoError(t, s.Authenticate(ctx, "root", "password"))

	ch1, err := s.OpenChannel(ctx, "echo a")
	require.NoError(t, err)
	ch2, err := s.OpenChannel(ctx, "echo a")
	require.NoError(t, err)

	lines, err := ch1.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, lines)

	require.NoError(t, s.Close())
	require.Equal(t, StateClosed, s.State())
	require.True(t, transport.isClosed())

	require.Equal(t, ChannelClosed, ch1.State())
	require.Equal(t, ChannelClosed, ch2.State())
	for _, fs := range transport.opened {
		require.True(t, fs.isClosed())
	}

	// A drained channel keeps its terminal status, an unread one has none.
	status, ok := ch1.Status()
	require.True(t, ok)
	require.Equal(t, 0, status)
	_, ok = ch2.Status()
	require.False(t, ok)

	_, err = ch2.ReadAll(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestClose_Idempotent(t *testing.T) {
	s, _, _ := newFakeSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "example.com", 22))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Connect(ctx, "example.com", 22), ErrInvalidState)
	require.ErrorIs(t, s.Authenticate(ctx, "root", "password"), ErrInvalidState)
	_, err := s.OpenChannel(ctx, "echo a")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestClose_Unconnected(t *testing.T) {
	s, _, transport := newFakeSession(t)

	require.NoError(t, s.Close())
	require.False(t, transport.isClosed())
	require.Equal(t, StateClosed, s.State())
}
