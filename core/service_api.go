package core

import (
	"context"

	"pkt.systems/nextvm/schema"
)

// Service is the transport-agnostic API for managing terminal sessions and
// submitting commands.
type Service interface {
	CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	SetActiveSession(ctx context.Context, req schema.SetActiveSessionRequest) (schema.SetActiveSessionResponse, error)
	UpdateInput(ctx context.Context, req schema.UpdateInputRequest) (schema.UpdateInputResponse, error)
	Submit(ctx context.Context, req schema.SubmitRequest) (schema.SubmitResponse, error)
	GetLog(ctx context.Context, req schema.GetLogRequest) (schema.GetLogResponse, error)
	GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error)
}
