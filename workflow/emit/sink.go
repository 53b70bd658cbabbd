// Package emit implements the workflow's trace-emitter: a uniform event
// stream fanned out to zero or more sinks (in-memory replay buffer,
// structured log, OTLP span exporter).
package emit

import "context"

// Sink is a pure emission target. Implementations must be non-blocking
// (or internally bounded) and must never panic — a misbehaving
// observability backend must not take down a workflow run.
type Sink interface {
	// Emit records a single event. Sensitive fields have already been
	// redacted by the caller (see redact) unless capture-sensitive was
	// requested, so sinks never need to filter themselves.
	Emit(event Event)

	// Flush blocks until any buffered events are delivered, or ctx
	// expires. Called once at run end; must be safe to call even if
	// nothing was buffered.
	Flush(ctx context.Context) error
}

// Multi fans a single event out to every configured sink. A panic from
// one sink's Emit is recovered so it cannot take down the run or
// prevent delivery to the remaining sinks.
type Multi struct {
	Sinks            []Sink
	CaptureSensitive bool
}

// NewMulti builds a fan-out sink over the given sinks, redacting
// sensitive fields unless captureSensitive is set.
func NewMulti(captureSensitive bool, sinks ...Sink) *Multi {
	return &Multi{Sinks: sinks, CaptureSensitive: captureSensitive}
}

func (m *Multi) Emit(event Event) {
	event.Data = redact(event.Data, m.CaptureSensitive)
	for _, s := range m.Sinks {
		emitSafely(s, event)
	}
}

func emitSafely(s Sink, event Event) {
	defer func() { _ = recover() }()
	s.Emit(event)
}

func (m *Multi) Flush(ctx context.Context) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
