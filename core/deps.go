package core

import "pkt.systems/pslog"

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	Executor  Executor
	Renderer  Renderer
	EventSink EventSink
	Logger    pslog.Logger
}
