package schema

// Session lifecycle.

// CreateSessionRequest describes a request to create a session.
type CreateSessionRequest struct{}

// CreateSessionResponse reports the created session.
type CreateSessionResponse struct {
	Session SessionSnapshot `json:"session"`
}

// CloseSessionRequest describes a request to close a session.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse reports the closed session and the new active pointer.
// Replacement is set when the last session was closed and a fresh one created.
type CloseSessionResponse struct {
	Session       SessionSnapshot  `json:"session"`
	ActiveSession SessionID        `json:"active_session"`
	Replacement   *SessionSnapshot `json:"replacement,omitempty"`
}

// ListSessionsRequest describes a request to list sessions.
type ListSessionsRequest struct{}

// ListSessionsResponse reports sessions in creation order and the active pointer.
type ListSessionsResponse struct {
	Sessions      []SessionSnapshot `json:"sessions"`
	ActiveSession SessionID         `json:"active_session"`
	Theme         ThemeURL          `json:"theme,omitempty"`
}

// SetActiveSessionRequest describes a request to move the active pointer.
type SetActiveSessionRequest struct {
	SessionID SessionID
}

// SetActiveSessionResponse reports the active pointer after the request.
type SetActiveSessionResponse struct {
	ActiveSession SessionID `json:"active_session"`
	Changed       bool      `json:"changed"`
}

// Input and submission.

// UpdateInputRequest replaces a session's input buffer.
type UpdateInputRequest struct {
	SessionID SessionID
	Input     string
}

// UpdateInputResponse reports the updated session.
type UpdateInputResponse struct {
	Session SessionSnapshot `json:"session"`
}

// SubmitRequest submits the input buffer of a session.
type SubmitRequest struct {
	SessionID SessionID
}

// SubmitResponse reports what a submission appended.
// Submitted is false when the input buffer was blank.
type SubmitResponse struct {
	Session   SessionSnapshot `json:"session"`
	Command   string          `json:"command,omitempty"`
	Submitted bool            `json:"submitted"`
	Reset     bool            `json:"reset,omitempty"`
	Entries   []OutputEntry   `json:"entries"`
}

// Reads.

// GetLogRequest requests a session's output log. Limit <= 0 returns all entries.
type GetLogRequest struct {
	SessionID SessionID
	Limit     int
}

// GetLogResponse returns the log snapshot.
type GetLogResponse struct {
	Log LogSnapshot `json:"log"`
}

// GetHistoryRequest requests a session's command history.
type GetHistoryRequest struct {
	SessionID SessionID
}

// GetHistoryResponse returns submitted commands, oldest first.
type GetHistoryResponse struct {
	SessionID SessionID `json:"session_id"`
	Entries   []string  `json:"entries"`
}

// Execution endpoint payloads.

// ExecuteRequest is the body posted to the execution endpoint.
type ExecuteRequest struct {
	Command string `json:"command"`
}

// ExecuteResponse is the success body of the execution endpoint.
type ExecuteResponse struct {
	Result string `json:"result"`
}

// ExecuteErrorResponse is the failure body of the execution endpoint.
type ExecuteErrorResponse struct {
	Error string `json:"error"`
}
