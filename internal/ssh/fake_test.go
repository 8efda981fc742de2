package ssh

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// fakeDialer records dials and hands out a single transport.
type fakeDialer struct {
	mu        sync.Mutex
	calls     int
	addr      string
	err       error
	transport *fakeTransport
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.addr = addr
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeTransport answers Exec from a command table.
type fakeTransport struct {
	mu        sync.Mutex
	password  string
	authCalls int
	authErr   error
	execErr   error
	streams   map[string]func() *fakeStream
	opened    []*fakeStream
	closed    bool

	// stall, when set, holds Exec until it is closed or ctx is done.
	// entered receives once per stalled Exec.
	stall   chan struct{}
	entered chan struct{}
}

func newFakeTransport(password string) *fakeTransport {
	return &fakeTransport{
		password: password,
		streams:  make(map[string]func() *fakeStream),
	}
}

func (t *fakeTransport) on(command string, fn func() *fakeStream) {
	t.streams[command] = fn
}

func (t *fakeTransport) Authenticate(ctx context.Context, user, secret string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authCalls++
	if t.authErr != nil {
		return t.authErr
	}
	if secret != t.password {
		return fmt.Errorf("%w: password rejected for %q", ErrAuthentication, user)
	}
	return nil
}

func (t *fakeTransport) Exec(ctx context.Context, command string) (Stream, error) {
	if t.stall != nil {
		t.entered <- struct{}{}
		select {
		case <-t.stall:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.execErr != nil {
		return nil, t.execErr
	}
	fn, ok := t.streams[command]
	if !ok {
		fn = func() *fakeStream { return outputStream("", 127) }
	}
	s := fn()
	t.opened = append(t.opened, s)
	return s, nil
}

func (t *fakeTransport) stallExec() {
	t.stall = make(chan struct{})
	t.entered = make(chan struct{}, 1)
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fakeStream serves a reader and a fixed exit status.
type fakeStream struct {
	r       io.Reader
	status  int
	waitErr error

	mu     sync.Mutex
	closed bool
}

func outputStream(output string, status int) *fakeStream {
	return &fakeStream{r: strings.NewReader(output), status: status}
}

// blockingStream never produces data, not even after Close, like a stalled
// remote command on a transport that ignores the close.
func blockingStream() (*fakeStream, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &fakeStream{r: pr}, pw
}

func (s *fakeStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *fakeStream) Wait() (int, error) {
	if s.waitErr != nil {
		return -1, s.waitErr
	}
	return s.status, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
