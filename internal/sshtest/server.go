// Package sshtest provides an in-process SSH server for tests.
//
// The server accepts password authentication for a single user and answers
// exec requests with a Handler. It listens on 127.0.0.1 with a random port.
package sshtest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Handler runs one exec request. It writes the command's stdout to out and
// returns the exit status. ctx is cancelled when the server closes.
type Handler func(ctx context.Context, command string, out io.Writer) uint32

// Server is a running test SSH server.
type Server struct {
	user     string
	password string
	handler  Handler

	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.PublicKey

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	authFailures atomic.Int64
	execs        atomic.Int64
}

// New starts a server accepting user/password. A nil handler means Shell.
func New(user, password string, handler Handler) (*Server, error) {
	if handler == nil {
		handler = Shell
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("host key signer: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		user:     user,
		password: password,
		handler:  handler,
		listener: ln,
		hostKey:  signer.PublicKey(),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}

	s.config = &ssh.ServerConfig{
		PasswordCallback: s.checkPassword,
	}
	s.config.AddHostKey(signer)

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Start starts a server and closes it when the test ends.
func Start(tb testing.TB, user, password string, handler Handler) *Server {
	tb.Helper()
	s, err := New(user, password, handler)
	if err != nil {
		tb.Fatalf("sshtest: %v", err)
	}
	tb.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// Addr returns the listen address (host:port).
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// HostKey returns the server public key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey
}

// AuthFailures returns the number of rejected password attempts.
func (s *Server) AuthFailures() int {
	return int(s.authFailures.Load())
}

// Execs returns the number of exec requests served.
func (s *Server) Execs() int {
	return int(s.execs.Load())
}

// Close stops accepting, drops every connection and waits for handlers.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) checkPassword(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	if meta.User() == s.user && string(password) == s.password {
		return nil, nil
	}
	s.authFailures.Add(1)
	return nil, fmt.Errorf("password rejected for %q", meta.User())
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(raw net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, raw)
		s.mu.Unlock()
		_ = raw.Close()
	}()

	sc, chans, reqs, err := ssh.NewServerConn(raw, s.config)
	if err != nil {
		return
	}
	defer sc.Close()

	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleSession(ch, chReqs)
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer s.wg.Done()
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct {
			Command string
		}
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)
		s.execs.Add(1)

		go func() {
			for r := range reqs {
				if r.WantReply {
					_ = r.Reply(false, nil)
				}
			}
		}()

		status := s.handler(s.ctx, payload.Command, ch)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct {
			Status uint32
		}{status}))
		return
	}
}
