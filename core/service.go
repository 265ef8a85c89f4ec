package core

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/nextvm/internal/command"
	"pkt.systems/nextvm/internal/logx"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg      schema.ServiceConfig
	executor Executor
	renderer Renderer
	sink     EventSink
	logger   pslog.Logger

	mu       sync.Mutex
	emitMu   sync.Mutex
	sessions map[schema.SessionID]*session
	order    []schema.SessionID
	active   schema.SessionID
	ids      idSequence
	theme    schema.ThemeURL
}

// NewService constructs the core service implementation. The returned
// service starts with one default session.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Renderer == nil {
		deps.Renderer = NewANSIRenderer()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &service{
		cfg:      normalized,
		executor: deps.Executor,
		renderer: deps.Renderer,
		sink:     deps.EventSink,
		logger:   logger,
		sessions: make(map[schema.SessionID]*session),
	}
	s.mu.Lock()
	first := s.addSessionLocked()
	s.mu.Unlock()
	logger.Info("service default session created", "session", int(first.ID))
	return s, nil
}

func (s *service) CreateSession(ctx context.Context, _ schema.CreateSessionRequest) (schema.CreateSessionResponse, error) {
	if ctx == nil {
		return schema.CreateSessionResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	sess := s.addSessionLocked()
	snapshot := sess.Snapshot(true)
	event := schema.SessionEvent{
		Type:          schema.SessionEventCreated,
		Session:       snapshot,
		ActiveSession: s.active,
	}
	release := s.handoffLocked()
	s.emitSessionEvent(event)
	release()
	logx.WithSession(ctx, sess.ID).Info("service session created")
	return schema.CreateSessionResponse{Session: snapshot}, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	if ctx == nil {
		return schema.CloseSessionResponse{}, errors.New("missing context")
	}
	log := logx.WithSession(ctx, req.SessionID)

	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	if sess == nil {
		s.mu.Unlock()
		log.Warn("service session close failed", "err", schema.ErrSessionNotFound)
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	delete(s.sessions, req.SessionID)
	s.order = removeSessionID(s.order, req.SessionID)
	if s.active == req.SessionID {
		s.active = 0
		if len(s.order) > 0 {
			s.active = s.order[0]
		}
	}
	var replacement *schema.SessionSnapshot
	if len(s.order) == 0 {
		fresh := s.addSessionLocked()
		snap := fresh.Snapshot(true)
		replacement = &snap
	}
	closed := sess.Snapshot(false)
	active := s.active
	release := s.handoffLocked()
	s.emitSessionEvent(schema.SessionEvent{
		Type:          schema.SessionEventClosed,
		Session:       closed,
		ActiveSession: active,
	})
	if replacement != nil {
		s.emitSessionEvent(schema.SessionEvent{
			Type:          schema.SessionEventCreated,
			Session:       *replacement,
			ActiveSession: active,
		})
	}
	release()
	if replacement != nil {
		log.Info("service replacement session created", "replacement", int(replacement.ID))
	}
	log.Info("service session closed", "active", int(active))
	return schema.CloseSessionResponse{
		Session:       closed,
		ActiveSession: active,
		Replacement:   replacement,
	}, nil
}

func (s *service) ListSessions(ctx context.Context, _ schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	if ctx == nil {
		return schema.ListSessionsResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]schema.SessionSnapshot, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		if sess == nil {
			continue
		}
		sessions = append(sessions, sess.Snapshot(id == s.active))
	}
	return schema.ListSessionsResponse{
		Sessions:      sessions,
		ActiveSession: s.active,
		Theme:         s.theme,
	}, nil
}

func (s *service) SetActiveSession(ctx context.Context, req schema.SetActiveSessionRequest) (schema.SetActiveSessionResponse, error) {
	if ctx == nil {
		return schema.SetActiveSessionResponse{}, errors.New("missing context")
	}
	log := logx.WithSession(ctx, req.SessionID)

	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	if sess == nil || s.active == req.SessionID {
		active := s.active
		s.mu.Unlock()
		if sess == nil {
			log.Debug("service session activate ignored", "reason", "not found")
		}
		return schema.SetActiveSessionResponse{ActiveSession: active}, nil
	}
	s.active = req.SessionID
	event := schema.SessionEvent{
		Type:          schema.SessionEventActivated,
		Session:       sess.Snapshot(true),
		ActiveSession: s.active,
	}
	release := s.handoffLocked()
	s.emitSessionEvent(event)
	release()
	log.Info("service session activated")
	return schema.SetActiveSessionResponse{ActiveSession: req.SessionID, Changed: true}, nil
}

func (s *service) UpdateInput(ctx context.Context, req schema.UpdateInputRequest) (schema.UpdateInputResponse, error) {
	if ctx == nil {
		return schema.UpdateInputResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	if sess == nil {
		s.mu.Unlock()
		logx.WithSession(ctx, req.SessionID).Warn("service input update failed", "err", schema.ErrSessionNotFound)
		return schema.UpdateInputResponse{}, schema.ErrSessionNotFound
	}
	sess.input = req.Input
	snapshot := sess.Snapshot(sess.ID == s.active)
	event := schema.SessionEvent{
		Type:          schema.SessionEventInput,
		Session:       snapshot,
		ActiveSession: s.active,
	}
	release := s.handoffLocked()
	s.emitSessionEvent(event)
	release()
	logx.WithSession(ctx, req.SessionID).Trace("service input updated", "input_len", len(req.Input))
	return schema.UpdateInputResponse{Session: snapshot}, nil
}

func (s *service) Submit(ctx context.Context, req schema.SubmitRequest) (schema.SubmitResponse, error) {
	if ctx == nil {
		return schema.SubmitResponse{}, errors.New("missing context")
	}
	baseLog := logx.WithSession(ctx, req.SessionID)
	ctx = logx.ContextWithSessionLogger(ctx, baseLog, req.SessionID)

	s.mu.Lock()
	sess := s.sessions[req.SessionID]
	if sess == nil {
		s.mu.Unlock()
		baseLog.Warn("service submit failed", "err", schema.ErrSessionNotFound)
		return schema.SubmitResponse{}, schema.ErrSessionNotFound
	}
	commandText, err := schema.NormalizeCommand(sess.input)
	if err != nil {
		snapshot := sess.Snapshot(sess.ID == s.active)
		s.mu.Unlock()
		return schema.SubmitResponse{Session: snapshot}, nil
	}
	cmd := command.Parse(commandText)
	log := logx.WithCommand(baseLog, cmd.Kind.String(), commandText)
	if !s.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", cmd.Kind.String(), "command", commandText)
	}

	echo := schema.TextEntry(s.cfg.Prompt + " " + commandText)
	echo.Echo = true
	appended := sess.buffer.Append(echo)
	sess.input = ""
	sess.history.Append(commandText)

	outcome, local := command.Resolve(cmd)
	if local {
		resp := s.applyLocalLocked(sess, commandText, outcome, appended)
		active := s.active
		release := s.handoffLocked()
		s.emitOutput(resp.Session.ID, resp.Entries, resp.Reset)
		if outcome.Theme != "" {
			s.emitSessionEvent(schema.SessionEvent{
				Type:          schema.SessionEventTheme,
				Session:       resp.Session,
				ActiveSession: active,
				Theme:         outcome.Theme,
			})
		}
		release()
		if outcome.Err != nil {
			log.Warn("service pseudo command rejected", "err", outcome.Err)
		} else {
			log.Info("service pseudo command handled", "reset", outcome.Reset)
		}
		return resp, nil
	}
	release := s.handoffLocked()
	s.emitOutput(req.SessionID, appended, false)
	release()

	completion := s.execute(ctx, log, req.SessionID, commandText)

	s.mu.Lock()
	sess = s.sessions[req.SessionID]
	if sess == nil {
		s.mu.Unlock()
		log.Warn("service completion dropped", "reason", "session closed")
		return schema.SubmitResponse{
			Session:   schema.SessionSnapshot{ID: req.SessionID, Title: schema.SessionTitle(req.SessionID)},
			Command:   commandText,
			Submitted: true,
			Entries:   appended,
		}, nil
	}
	stored := sess.buffer.Append(completion)
	snapshot := sess.Snapshot(sess.ID == s.active)
	release = s.handoffLocked()
	s.emitOutput(req.SessionID, stored, false)
	release()
	log.Trace("service output appended", "entries", len(stored))

	return schema.SubmitResponse{
		Session:   snapshot,
		Command:   commandText,
		Submitted: true,
		Entries:   append(appended, stored...),
	}, nil
}

// applyLocalLocked applies a pseudo-command outcome to sess. The echo entry is
// already in appended.
func (s *service) applyLocalLocked(sess *session, commandText string, outcome command.Outcome, appended []schema.OutputEntry) schema.SubmitResponse {
	resp := schema.SubmitResponse{
		Command:   commandText,
		Submitted: true,
	}
	if outcome.Reset {
		resp.Reset = true
		resp.Entries = sess.buffer.Reset(s.bannerEntry())
	} else {
		resp.Entries = append(appended, sess.buffer.Append(outcome.Entries...)...)
	}
	if outcome.Theme != "" {
		s.theme = outcome.Theme
	}
	resp.Session = sess.Snapshot(sess.ID == s.active)
	return resp
}

// execute dispatches a command and converts the result into exactly one entry.
// In-flight commands are not cancelled by the caller going away.
func (s *service) execute(ctx context.Context, log pslog.Logger, id schema.SessionID, commandText string) schema.OutputEntry {
	if s.executor == nil {
		log.Warn("service command failed", "err", schema.ErrExecutorUnavailable)
		return schema.ErrorEntry(schema.ErrorKindTransport, schema.TransportErrorText)
	}
	runCtx := context.WithoutCancel(ctx)
	log.Info("service command dispatched")
	result, err := s.executor.Execute(runCtx, ExecRequest{SessionID: id, Command: commandText})
	if err == nil {
		log.Info("service command completed", "output_len", len(result.Output))
		return s.renderer.RenderResult(result.Output)
	}
	var execErr *schema.ExecutionError
	if errors.As(err, &execErr) {
		message := execErr.Message
		if message == "" {
			message = schema.UnknownErrorText
		}
		log.Warn("service command failed", "err", err, "error_kind", string(schema.ErrorKindCommand))
		return schema.ErrorEntry(schema.ErrorKindCommand, "Error: "+message)
	}
	log.Warn("service command failed", "err", err, "error_kind", string(schema.ErrorKindTransport))
	return schema.ErrorEntry(schema.ErrorKindTransport, schema.TransportErrorText)
}

func (s *service) GetLog(ctx context.Context, req schema.GetLogRequest) (schema.GetLogResponse, error) {
	if ctx == nil {
		return schema.GetLogResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[req.SessionID]
	if sess == nil {
		logx.WithSession(ctx, req.SessionID).Debug("service log read failed", "err", schema.ErrSessionNotFound)
		return schema.GetLogResponse{}, schema.ErrSessionNotFound
	}
	return schema.GetLogResponse{Log: schema.LogSnapshot{
		SessionID:    sess.ID,
		Entries:      sess.buffer.Snapshot(req.Limit),
		TotalEntries: sess.buffer.Len(),
	}}, nil
}

func (s *service) GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	if ctx == nil {
		return schema.GetHistoryResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[req.SessionID]
	if sess == nil {
		return schema.GetHistoryResponse{}, schema.ErrSessionNotFound
	}
	return schema.GetHistoryResponse{SessionID: sess.ID, Entries: sess.history.Entries()}, nil
}

// addSessionLocked creates a session holding the banner and makes it active.
func (s *service) addSessionLocked() *session {
	sess := &session{
		ID:      s.ids.next(),
		buffer:  newBufferWithMaxEntries(s.cfg.BufferMaxEntries),
		history: newHistory(defaultHistoryMax),
	}
	sess.buffer.Append(s.bannerEntry())
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	s.active = sess.ID
	return sess
}

func (s *service) bannerEntry() schema.OutputEntry {
	entry := schema.TextEntry(s.cfg.Banner)
	entry.Banner = true
	return entry
}

// handoffLocked trades s.mu for the emit lock. Events sent before the returned
// func is called reach the sink in the order their changes were applied.
func (s *service) handoffLocked() func() {
	s.emitMu.Lock()
	s.mu.Unlock()
	return s.emitMu.Unlock
}

func (s *service) emitOutput(id schema.SessionID, entries []schema.OutputEntry, reset bool) {
	if s.sink == nil || (len(entries) == 0 && !reset) {
		return
	}
	s.sink.OnOutput(schema.OutputEvent{
		SessionID: id,
		Entries:   append([]schema.OutputEntry(nil), entries...),
		Reset:     reset,
	})
}

func (s *service) emitSessionEvent(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func removeSessionID(order []schema.SessionID, id schema.SessionID) []schema.SessionID {
	out := order[:0]
	for _, existing := range order {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
