package logx

import (
	"context"

	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	requestKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the context logger with the session id if present.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID > 0 {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", int(sessionID))
	}
	return log
}

// WithCommand annotates the logger with command metadata.
func WithCommand(log pslog.Logger, kind string, command string) pslog.Logger {
	if kind != "" {
		log = log.With("command_kind", kind)
	}
	if command != "" {
		log = log.With("command_len", len(command))
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}

// ContextWithRequestID stores the request id on the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, id)
}

// RequestID returns the request id stored on the context, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestKey).(string)
	return id
}

// CopyContextFields copies session and request markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if id, ok := src.Value(sessionKey).(schema.SessionID); ok && id > 0 {
		dst = ContextWithSession(dst, id)
	}
	if id, ok := src.Value(requestKey).(string); ok && id != "" {
		dst = ContextWithRequestID(dst, id)
	}
	return dst
}
