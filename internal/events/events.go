// Package events carries controller output events to their consumers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Sink consumes controller events. Handle is called from the control loop
// and must not block.
type Sink interface {
	Handle(ev model.Event)
}

type SinkFunc func(ev model.Event)

func (f SinkFunc) Handle(ev model.Event) { f(ev) }

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Handle(ev model.Event) {
	for _, s := range f {
		s.Handle(ev)
	}
}

type filter struct {
	sink  Sink
	allow func(model.Event) bool
}

func (f filter) Handle(ev model.Event) {
	if f.allow(ev) {
		f.sink.Handle(ev)
	}
}

// Only passes through events of the given types.
func Only(sink Sink, types ...model.EventType) Sink {
	set := make(map[model.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return filter{sink: sink, allow: func(ev model.Event) bool { return set[ev.Type] }}
}

// NonPeriodic drops display refresh and animation events.
func NonPeriodic(sink Sink) Sink {
	return filter{sink: sink, allow: func(ev model.Event) bool { return !ev.Periodic() }}
}

// Async hands events to a worker goroutine through a bounded buffer so that
// slow sinks (disk, network) never stall the control loop. Events that do not
// fit are dropped and counted. Wrap an Async in Only or NonPeriodic, not the
// other way round, so filtered events never occupy the buffer.
type Async struct {
	name    string
	sink    Sink
	ch      chan model.Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewAsync(name string, sink Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		name: name,
		sink: sink,
		ch:   make(chan model.Event, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.ch {
		a.sink.Handle(ev)
	}
}

func (a *Async) Handle(ev model.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}

	select {
	case a.ch <- ev:
	default:
		total := a.dropped.Add(1)
		log.Warn().
			Str("sink", a.name).
			Str("event", string(ev.Type)).
			Uint64("dropped_total", total).
			Msg("Event sink backlog full, dropping event")
	}
}

// Close stops accepting events and waits for the worker to deliver what is
// already buffered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) Dropped() uint64 { return a.dropped.Load() }
