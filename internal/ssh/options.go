package ssh

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/yoanbernabeu/sshrun/internal/constants"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	dialer          Dialer
	dialTimeout     time.Duration
	readTimeout     time.Duration
	hostKeyCallback ssh.HostKeyCallback
	logger          zerolog.Logger
}

func defaultOptions() options {
	return options{
		dialTimeout: constants.DefaultDialTimeout,
		readTimeout: constants.DefaultReadTimeout,
		logger:      zerolog.Nop(),
	}
}

// WithDialer replaces the x/crypto based dialer. Dial and host key options
// are ignored when a custom dialer is set.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithDialTimeout bounds TCP connect and the SSH handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithReadTimeout bounds how long a channel read waits for the next line.
// Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithHostKeyCallback sets the host key verification policy.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(o *options) {
		o.hostKeyCallback = cb
	}
}

// WithLogger sets the logger used by the session and its channels.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
