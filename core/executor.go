package core

import (
	"context"

	"pkt.systems/nextvm/schema"
)

// Executor runs a shell command on behalf of a session.
//
// Implementations report a failure of the command itself with
// *schema.ExecutionError and a failure to reach the execution endpoint with
// *schema.TransportError. Any other error is treated as a transport failure.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
}

// ExecRequest describes a command dispatched by Submit.
type ExecRequest struct {
	SessionID schema.SessionID
	Command   string
}

// ExecResult carries the captured standard output of a command.
type ExecResult struct {
	Output string
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req ExecRequest) (ExecResult, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req ExecRequest) (ExecResult, error) {
	return f(ctx, req)
}
