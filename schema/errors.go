package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidImageURL indicates showimage was invoked without a URL.
	ErrInvalidImageURL = errors.New("invalid image url")
	// ErrInvalidThemeURL indicates nextvm was invoked without a URL.
	ErrInvalidThemeURL = errors.New("invalid theme url")
	// ErrEmptyCommand indicates the command text was empty.
	ErrEmptyCommand = errors.New("empty command")
	// ErrCommandExecution indicates the executed command reported a failure.
	ErrCommandExecution = errors.New("command execution failed")
	// ErrTransport indicates the execution endpoint could not be reached.
	ErrTransport = errors.New("transport error")
	// ErrExecutorUnavailable indicates no executor is configured.
	ErrExecutorUnavailable = errors.New("executor not configured")
)

// ExecutionError carries the message reported for a failed command.
// It matches ErrCommandExecution with errors.Is.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	if e == nil || e.Message == "" {
		return ErrCommandExecution.Error()
	}
	return e.Message
}

// Is reports whether target is ErrCommandExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrCommandExecution
}

// TransportError wraps a failure to complete a request to the execution endpoint.
// It matches ErrTransport with errors.Is.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return ErrTransport.Error()
	}
	return ErrTransport.Error() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
