package main

import (
	"github.com/thatsimonsguy/kettle-controller/internal/events"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/mqtt"
)

// outputSinks wraps the slow outputs in async buffers. The filters sit outside
// the buffers so periodic display events never take a slot from a notable
// one. publisher and notifier may be nil. The returned asyncs must be closed
// on shutdown.
func outputSinks(journal events.Sink, publisher mqtt.Publisher, notifier events.Sink) (events.Fanout, []*events.Async) {
	journalSink := events.NewAsync("journal", journal, 64)
	sinks := events.Fanout{events.NonPeriodic(journalSink)}
	asyncs := []*events.Async{journalSink}

	if publisher != nil {
		mqttSink := events.NewAsync("mqtt", mqtt.Sink{Publisher: publisher}, 64)
		sinks = append(sinks, events.NonPeriodic(mqttSink))
		asyncs = append(asyncs, mqttSink)
	}
	if notifier != nil {
		ntfySink := events.NewAsync("ntfy", notifier, 16)
		sinks = append(sinks,
			events.Only(ntfySink, model.EventCompleted, model.EventSafetyCutoff, model.EventRelayFault))
		asyncs = append(asyncs, ntfySink)
	}
	return sinks, asyncs
}
