package ssh

import (
	"errors"
	"fmt"
)

// Error kinds returned by Session and Channel. Match them with errors.Is.
var (
	ErrConnection     = errors.New("ssh: connection failed")
	ErrAuthentication = errors.New("ssh: authentication failed")
	ErrChannel        = errors.New("ssh: channel allocation failed")
	ErrStream         = errors.New("ssh: stream read failed")
	ErrInvalidState   = errors.New("ssh: invalid state")
	ErrClosed         = errors.New("ssh: channel closed")
	ErrReadTimeout    = errors.New("ssh: read timed out")

	// ErrNoExitStatus is reported by a Stream whose remote command ended
	// without sending an exit status.
	ErrNoExitStatus = errors.New("ssh: remote command exited without exit status")
)

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Op    string
	State fmt.Stringer
}

func (e *StateError) Error() string {
	return fmt.Sprintf("ssh: %s not allowed in state %s", e.Op, e.State)
}

// Is makes StateError match ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
