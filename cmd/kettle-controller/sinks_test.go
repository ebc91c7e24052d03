package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/mqtt"
)

// gatedSink blocks every delivery until release is closed.
type gatedSink struct {
	release chan struct{}
	started chan struct{}

	mu    sync.Mutex
	types []model.EventType
}

func newGatedSink() *gatedSink {
	return &gatedSink{release: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (g *gatedSink) Handle(ev model.Event) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	g.mu.Lock()
	g.types = append(g.types, ev.Type)
	g.mu.Unlock()
}

func (g *gatedSink) got() []model.EventType {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.EventType(nil), g.types...)
}

func TestOutputSinksKeepNotableEventsBehindSlowSinks(t *testing.T) {
	journal := newGatedSink()
	notifier := newGatedSink()
	publisher := mqtt.NewFakePublisher()

	sinks, asyncs := outputSinks(journal, publisher, notifier)
	require.Len(t, asyncs, 3)

	sinks.Handle(model.Event{Type: model.EventSafetyCutoff})
	<-journal.started
	<-notifier.started

	// several seconds of display traffic while both slow sinks are stuck
	for i := 0; i < 100; i++ {
		sinks.Handle(model.Event{Type: model.EventDisplayRefresh})
		sinks.Handle(model.Event{Type: model.EventHeatingAnimation})
	}
	sinks.Handle(model.Event{Type: model.EventStartedHeating})
	sinks.Handle(model.Event{Type: model.EventCompleted})

	close(journal.release)
	close(notifier.release)
	for _, a := range asyncs {
		a.Close()
		assert.Zero(t, a.Dropped())
	}

	assert.Equal(t, []model.EventType{model.EventSafetyCutoff, model.EventStartedHeating, model.EventCompleted}, journal.got())
	assert.Equal(t, []model.EventType{model.EventSafetyCutoff, model.EventCompleted}, notifier.got())

	var published []model.EventType
	for _, ev := range publisher.Published() {
		published = append(published, ev.Type)
	}
	assert.Equal(t, []model.EventType{model.EventSafetyCutoff, model.EventStartedHeating, model.EventCompleted}, published)
}

func TestOutputSinksOptionalOutputs(t *testing.T) {
	sinks, asyncs := outputSinks(newGatedSink(), nil, nil)
	assert.Len(t, sinks, 1)
	require.Len(t, asyncs, 1)

	asyncs[0].Close()
}
