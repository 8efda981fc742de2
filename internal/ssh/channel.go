package ssh

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

// ChannelState is the lifecycle state of a Channel.
type ChannelState int

const (
	ChannelOpen ChannelState = iota
	// ChannelDraining means the stream reported end-of-data.
	ChannelDraining
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOpen:
		return "open"
	case ChannelDraining:
		return "draining"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Channel is one remote command execution.
//
// Output is read by a single background reader, started on the first read,
// that hands lines over one at a time. Lines are delivered at most once.
type Channel struct {
	session     *Session
	command     string
	stream      Stream
	readTimeout time.Duration
	log         zerolog.Logger

	start  sync.Once
	lines  chan string
	done   chan struct{}
	closed chan struct{}

	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	state     ChannelState
	eof       bool
	err       error
	status    int
	hasStatus bool
}

func newChannel(s *Session, command string, stream Stream) *Channel {
	return &Channel{
		session:     s,
		command:     command,
		stream:      stream,
		readTimeout: s.opts.readTimeout,
		log:         s.log.With().Str("command", security.SanitizeCommandForLog(command)).Logger(),
		lines:       make(chan string),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
	}
}

// Session returns the session that opened the channel.
func (c *Channel) Session() *Session {
	return c.session
}

// Command returns the command the channel runs.
func (c *Channel) Command() string {
	return c.command
}

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the exit status. The second value is false until the remote
// command has exited and reported a status.
func (c *Channel) Status() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.hasStatus
}

// Lines returns the channel output as a lazy sequence of lines. Each step
// blocks until a line arrives or the stream ends. The sequence stops after
// yielding a non-nil error. Lines already delivered are never delivered
// again, so iterating a drained channel yields nothing.
func (c *Channel) Lines(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, ok, err := c.next(ctx)
			if err != nil {
				yield("", err)
				return
			}
			if !ok {
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// ReadAll reads the remaining output. On error it returns the lines read so
// far together with the error.
func (c *Channel) ReadAll(ctx context.Context) ([]string, error) {
	var lines []string
	for line, err := range c.Lines(ctx) {
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Close releases the stream. A read blocked on the channel returns ErrClosed.
// Calling Close again returns the first result.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = ChannelClosed
		c.mu.Unlock()

		close(c.closed)
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}

func (c *Channel) next(ctx context.Context) (string, bool, error) {
	select {
	case <-c.closed:
		return "", false, c.finish()
	default:
	}

	c.start.Do(func() {
		go c.pump()
	})

	var timeout <-chan time.Time
	if c.readTimeout > 0 {
		timer := time.NewTimer(c.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case line := <-c.lines:
		return line, true, nil
	case <-c.done:
		return "", false, c.finish()
	case <-c.closed:
		return "", false, c.finish()
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-timeout:
		return "", false, fmt.Errorf("%w after %s: %w", ErrReadTimeout, c.readTimeout, context.DeadlineExceeded)
	}
}

// finish reports why no further line will be delivered.
func (c *Channel) finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	if c.eof {
		return nil
	}
	return ErrClosed
}

func (c *Channel) pump() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.stream)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxLineSize)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.closed:
			return
		}
	}

	c.mu.Lock()
	if c.state == ChannelClosed {
		c.mu.Unlock()
		return
	}
	if err := scanner.Err(); err != nil {
		c.err = fmt.Errorf("%w: %w", ErrStream, err)
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("stream read failed")
		return
	}
	c.eof = true
	c.state = ChannelDraining
	c.mu.Unlock()

	status, err := c.stream.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.status = status
		c.hasStatus = true
		c.log.Debug().Int("exit_status", status).Msg("command exited")
	case errors.Is(err, ErrNoExitStatus) || c.state == ChannelClosed:
		c.log.Debug().Err(err).Msg("no exit status")
	default:
		c.err = fmt.Errorf("%w: %w", ErrStream, err)
	}
}
