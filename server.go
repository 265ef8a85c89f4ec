package nextvm

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/httpapi"
	"pkt.systems/nextvm/internal/eventbus"
	"pkt.systems/nextvm/internal/executor"
	"pkt.systems/nextvm/internal/metrics"
	"pkt.systems/nextvm/internal/version"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// Server composes the session store, the execution backends and the HTTP
// surface.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Addr returns the bound HTTP address once started.
	Addr() string
}

// Executor modes.
const (
	ExecutorModeHTTP  = "http"
	ExecutorModeLocal = "local"
)

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service             schema.ServiceConfig
	HTTP                httpapi.Config
	Executor            ExecutorConfig
	HubHistory          int
	DisableAuditLogging bool
}

// ExecutorConfig selects how the session store runs commands and how the
// execution endpoint runs them.
type ExecutorConfig struct {
	// Mode is "http" (post to Endpoint) or "local" (run in process). An
	// empty Endpoint in http mode targets this server's own /api/execute once
	// it is listening.
	Mode         string
	Endpoint     string
	Shell        string
	WorkingDir   string
	Timeout      time.Duration
	KillPrevious bool
}

// ServerDeps captures dependencies required to build the server. A non-nil
// ServiceDeps.Executor overrides ExecutorConfig.Mode; a non-nil Runner
// replaces the local shell behind the execution endpoint.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
	Runner      httpapi.CommandRunner
	Metrics     *metrics.Metrics
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP      bool
	enableWebSocket bool
	enableMetrics   bool
}

// WithHTTP enables the HTTP API/UI server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithWebSocket enables the /api/ws live stream.
func WithWebSocket() ServerOption {
	return func(o *serverOptions) { o.enableWebSocket = true }
}

// WithMetrics enables Prometheus collectors and the /metrics route.
func WithMetrics() ServerOption {
	return func(o *serverOptions) { o.enableMetrics = true }
}

// New constructs a composable nextvm server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP {
		return nil, errors.New("no services enabled")
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	if cfg.DisableAuditLogging {
		cfg.Service.DisableAuditLogging = true
	}

	runner := deps.Runner
	var shell *executor.Shell
	if runner == nil || (deps.ServiceDeps.Executor == nil && cfg.Executor.Mode == ExecutorModeLocal) {
		shell, err = executor.NewShell(executor.ShellConfig{
			Shell:               cfg.Executor.Shell,
			WorkingDir:          cfg.Executor.WorkingDir,
			Timeout:             cfg.Executor.Timeout,
			KillPrevious:        cfg.Executor.KillPrevious,
			DisableAuditLogging: cfg.Service.DisableAuditLogging,
		})
		if err != nil {
			return nil, err
		}
		if runner == nil {
			runner = shell
		}
	}

	serviceDeps := deps.ServiceDeps
	var self *selfExecutor
	if serviceDeps.Executor == nil {
		switch cfg.Executor.Mode {
		case ExecutorModeLocal:
			serviceDeps.Executor = shell
		case ExecutorModeHTTP, "":
			clientCfg := executor.ClientConfig{
				Endpoint:  cfg.Executor.Endpoint,
				Timeout:   cfg.Executor.Timeout,
				UserAgent: "nextvm/" + version.Current(),
			}
			if strings.TrimSpace(clientCfg.Endpoint) == "" {
				self = &selfExecutor{cfg: clientCfg}
				serviceDeps.Executor = self
				break
			}
			client, err := executor.NewClient(clientCfg)
			if err != nil {
				return nil, err
			}
			serviceDeps.Executor = client
		default:
			return nil, errors.New("unsupported executor mode " + cfg.Executor.Mode)
		}
	}

	hub := httpapi.NewHub(cfg.HubHistory)
	var bus *eventbus.Bus
	if options.enableWebSocket {
		bus = eventbus.New(serviceDeps.Logger)
	}
	m := deps.Metrics
	if options.enableMetrics && m == nil {
		m = metrics.New()
	}
	sinks := []core.EventSink{serviceDeps.EventSink, hub}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	if m != nil {
		sinks = append(sinks, m)
	}
	serviceDeps.EventSink = fanoutSinks(sinks...)

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if list, err := service.ListSessions(context.Background(), schema.ListSessionsRequest{}); err == nil {
			m.SetSessions(len(list.Sessions))
		}
	}

	httpCfg := cfg.HTTP
	httpCfg.EnableMetrics = httpCfg.EnableMetrics || options.enableMetrics
	httpSrv := httpapi.NewServer(httpCfg, httpapi.Deps{
		Service: service,
		Runner:  runner,
		Hub:     hub,
		Bus:     bus,
		Metrics: m,
	})

	return &compositeServer{
		cfg:     cfg,
		options: options,
		service: service,
		httpSrv: httpSrv,
		self:    self,
	}, nil
}

// selfExecutor posts to this server's own execution endpoint. The URL is
// known once the listener is bound.
type selfExecutor struct {
	cfg    executor.ClientConfig
	client atomic.Pointer[executor.Client]
}

func (e *selfExecutor) bind(addr, basePath string) error {
	cfg := e.cfg
	cfg.Endpoint = executor.SelfEndpoint(addr, basePath)
	client, err := executor.NewClient(cfg)
	if err != nil {
		return err
	}
	e.client.Store(client)
	return nil
}

func (e *selfExecutor) Execute(ctx context.Context, req core.ExecRequest) (core.ExecResult, error) {
	client := e.client.Load()
	if client == nil {
		return core.ExecResult{}, &schema.TransportError{Err: errors.New("execution endpoint not bound")}
	}
	return client.Execute(ctx, req)
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	service core.Service
	httpSrv *httpapi.Server
	self    *selfExecutor
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	addr    string
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.self != nil {
		if err := s.self.bind(ln.Addr().String(), s.cfg.HTTP.BasePath); err != nil {
			_ = ln.Close()
			s.mu.Unlock()
			return err
		}
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.addr = ln.Addr().String()
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"executor_mode", s.cfg.Executor.Mode,
		"websocket", s.options.enableWebSocket,
		"metrics", s.options.enableMetrics,
	)
	s.httpSrv.SetBaseContext(s.ctx)
	go func() {
		defer close(s.done)
		if err := httpapi.Serve(s.ctx, ln, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	done := s.done
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil || done == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
