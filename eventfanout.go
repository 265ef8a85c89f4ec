package nextvm

import (
	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSessionEvent(event)
	}
}

// fanoutSinks collapses sinks into a single EventSink, skipping nils.
func fanoutSinks(sinks ...core.EventSink) core.EventSink {
	out := make([]core.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return eventFanout{sinks: out}
	}
}
