// Package runner sequences commands over a single SSH session and collects
// their output in execution order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/security"
	"github.com/yoanbernabeu/sshrun/internal/ssh"
)

// ErrNotFound is returned for an unknown sequence number or line index.
var ErrNotFound = errors.New("runner: not found")

// Seq identifies a command within one Runner. The first command is 1.
type Seq uint64

// State is the lifecycle state of a Runner.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateReady
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithSessionOptions passes options to the session the Runner creates.
func WithSessionOptions(opts ...ssh.Option) Option {
	return func(r *Runner) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithConcurrency sets how many channels CollectAll drains at once.
// Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithLogger sets the logger for the runner and its session.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// Runner owns one Session and the ordered list of channels opened on it.
type Runner struct {
	id          string
	session     *ssh.Session
	sessionOpts []ssh.Option
	concurrency int
	log         zerolog.Logger

	// runMu keeps sequence numbers in channel open order.
	runMu sync.Mutex

	mu       sync.Mutex
	last     Seq
	entries  []*entry
	shutdown bool
}

// New creates an idle Runner with its own Session.
func New(opts ...Option) *Runner {
	r := &Runner{
		id:          uuid.NewString(),
		concurrency: constants.DefaultConcurrency,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.concurrency > constants.MaxConcurrency {
		r.concurrency = constants.MaxConcurrency
	}

	r.log = r.log.With().Str("runner_id", r.id).Logger()
	sessionOpts := append([]ssh.Option{ssh.WithLogger(r.log)}, r.sessionOpts...)
	r.session = ssh.NewSession(sessionOpts...)
	return r
}

// ID returns the runner identifier used in log lines.
func (r *Runner) ID() string {
	return r.id
}

// Session returns the session owned by the runner.
func (r *Runner) Session() *ssh.Session {
	return r.session
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Runner) stateLocked() State {
	if r.shutdown {
		return StateClosed
	}
	switch r.session.State() {
	case ssh.StateConnected:
		return StateConnected
	case ssh.StateAuthenticated:
		if len(r.entries) > 0 {
			return StateRunning
		}
		return StateReady
	case ssh.StateClosed:
		return StateClosed
	default:
		return StateIdle
	}
}

// Connect connects the session to host:port.
func (r *Runner) Connect(ctx context.Context, host string, port int) error {
	return r.session.Connect(ctx, host, port)
}

// Authenticate authenticates the session with a password.
func (r *Runner) Authenticate(ctx context.Context, user, secret string) error {
	return r.session.Authenticate(ctx, user, secret)
}

// Login connects and authenticates. On authentication failure the runner
// stays connected.
func (r *Runner) Login(ctx context.Context, user, secret, host string, port int) error {
	if err := r.Connect(ctx, host, port); err != nil {
		return err
	}
	return r.Authenticate(ctx, user, secret)
}

// Run opens a channel for command and returns its sequence number. Failed
// opens do not consume a number.
func (r *Runner) Run(ctx context.Context, command string) (Seq, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	state := r.stateLocked()
	r.mu.Unlock()
	if state != StateReady && state != StateRunning {
		return 0, &ssh.StateError{Op: "run", State: state}
	}

	ch, err := r.session.OpenChannel(ctx, command)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutdown {
		_ = ch.Close()
		return 0, &ssh.StateError{Op: "run", State: StateClosed}
	}

	r.last++
	e := &entry{seq: r.last, channel: ch}
	r.entries = append(r.entries, e)
	r.log.Debug().Uint64("seq", uint64(e.seq)).Str("command", security.SanitizeCommandForLog(command)).Msg("command started")
	return e.seq, nil
}

// Count returns the number of commands started by this runner.
func (r *Runner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// OutputOf returns every line of the command with the given sequence number,
// reading the channel to completion if needed. Repeated calls return the same
// lines. On error, the lines read so far are returned with it.
func (r *Runner) OutputOf(ctx context.Context, seq Seq) ([]string, error) {
	e, err := r.lookup(seq)
	if err != nil {
		return nil, err
	}
	return e.drain(ctx, nil)
}

// Stream reads the command with the given sequence number to completion,
// calling fn for each line as it arrives. Lines already read by earlier calls
// are passed to fn first. It returns the same lines and error as OutputOf.
func (r *Runner) Stream(ctx context.Context, seq Seq, fn func(line string)) ([]string, error) {
	e, err := r.lookup(seq)
	if err != nil {
		return nil, err
	}
	return e.drain(ctx, fn)
}

// Status returns the exit status of a command. The second value is false
// until the command has exited and reported one.
func (r *Runner) Status(seq Seq) (int, bool, error) {
	e, err := r.lookup(seq)
	if err != nil {
		return 0, false, err
	}
	status, ok := e.channel.Status()
	return status, ok, nil
}

// CollectAll drains every channel and returns their output in ascending
// sequence order. With concurrency 1 each channel is read to completion
// before the next one. Partial output is kept in the results when a channel
// fails; the returned error joins every failure.
func (r *Runner) CollectAll(ctx context.Context) (Results, error) {
	r.mu.Lock()
	state := r.stateLocked()
	entries := append([]*entry(nil), r.entries...)
	r.mu.Unlock()

	if state != StateRunning && !(state == StateClosed && len(entries) > 0) {
		return nil, &ssh.StateError{Op: "collect", State: state}
	}

	results := make(Results, len(entries))
	if r.concurrency == 1 {
		for i, e := range entries {
			results[i] = e.output(ctx)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, e := range entries {
			g.Go(func() error {
				results[i] = e.output(ctx)
				return nil
			})
		}
		// Workers never fail; errors are carried in results.
		_ = g.Wait()
	}

	return results, results.Err()
}

// Output returns the lines of every command, flattened in execution order.
func (r *Runner) Output(ctx context.Context) ([]string, error) {
	results, err := r.CollectAll(ctx)
	return results.Lines(), err
}

// Line returns the i-th line (zero based) of the flattened output.
func (r *Runner) Line(ctx context.Context, i int) (string, error) {
	lines, err := r.Output(ctx)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(lines) {
		return "", fmt.Errorf("%w: line %d of %d", ErrNotFound, i, len(lines))
	}
	return lines[i], nil
}

// Shutdown closes every channel, then the session. It is safe to call from
// any state and more than once.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil
	}
	r.shutdown = true
	entries := r.entries
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel %d: %w", e.seq, err))
		}
	}
	if err := r.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}

	r.log.Debug().Int("channels", len(entries)).Msg("runner shut down")
	return errors.Join(errs...)
}

func (r *Runner) lookup(seq Seq) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Sequence numbers are dense from 1.
	if seq < 1 || seq > Seq(len(r.entries)) {
		return nil, fmt.Errorf("%w: command %d", ErrNotFound, seq)
	}
	return r.entries[seq-1], nil
}

// entry caches what has been read from one channel, so that the runner can
// hand the same output out more than once.
type entry struct {
	seq     Seq
	channel *ssh.Channel

	mu    sync.Mutex
	lines []string
	done  bool
	err   error
}

// drain reads the channel to completion, calling fn for every line in
// order, including lines cached by earlier reads. Read timeouts and
// cancellations leave the entry resumable; end-of-data, stream failures and
// closes are final.
func (e *entry) drain(ctx context.Context, fn func(string)) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fn != nil {
		for _, line := range e.lines {
			fn(line)
		}
	}

	if !e.done {
		var err error
		for line, lerr := range e.channel.Lines(ctx) {
			if lerr != nil {
				err = lerr
				break
			}
			e.lines = append(e.lines, line)
			if fn != nil {
				fn(line)
			}
		}
		if err == nil || errors.Is(err, ssh.ErrStream) || errors.Is(err, ssh.ErrClosed) {
			e.done = true
			e.err = err
		} else {
			return append([]string(nil), e.lines...), fmt.Errorf("command %d: %w", e.seq, err)
		}
	}

	if e.err != nil {
		return append([]string(nil), e.lines...), fmt.Errorf("command %d: %w", e.seq, e.err)
	}
	return append([]string(nil), e.lines...), nil
}

func (e *entry) output(ctx context.Context) Output {
	lines, err := e.drain(ctx, nil)
	out := Output{
		Seq:     e.seq,
		Command: e.channel.Command(),
		Lines:   lines,
		Err:     err,
	}
	if status, ok := e.channel.Status(); ok {
		out.ExitStatus = &status
	}
	return out
}
