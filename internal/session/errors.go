package session

import "errors"

var (
	// ErrSessionClosed is returned by any Session method called after
	// teardown has started.
	ErrSessionClosed = errors.New("session: already closed")

	// ErrRecursionLimitExceeded guards DialogEngine.chatRound against an
	// LLM that keeps emitting tool calls forever; the source system has
	// no such bound, this one caps re-entry at maxToolCallDepth.
	ErrRecursionLimitExceeded = errors.New("session: tool-call recursion limit exceeded")

	// ErrIdleTimeout marks a teardown triggered by the idle-timeout
	// watcher rather than by the client or an error.
	ErrIdleTimeout = errors.New("session: closed for inactivity")

	// ErrTTSTimeout marks a single TTS job that did not complete within
	// its configured deadline. It does not tear down the session; the
	// TTS stage treats it as one failed segment among many.
	ErrTTSTimeout = errors.New("session: tts synthesis timed out")
)

// RetryableError wraps an underlying error with a classification the
// caller can act on without string-matching. No call site in this module
// currently wraps errors with it; the TTS stage marks a timed-out segment
// with ErrTTSTimeout instead.
type RetryableError struct {
	Underlying error
	Retryable  bool
}

func (e *RetryableError) Error() string {
	return e.Underlying.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Underlying
}

// NewRecoverableError wraps err as retryable.
func NewRecoverableError(err error) *RetryableError {
	return &RetryableError{Underlying: err, Retryable: true}
}

// NewFatalError wraps err as non-retryable.
func NewFatalError(err error) *RetryableError {
	return &RetryableError{Underlying: err, Retryable: false}
}

// IsRecoverable reports whether err (or any error it wraps) was marked
// retryable.
func IsRecoverable(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}
