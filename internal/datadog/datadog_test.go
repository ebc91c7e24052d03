package datadog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

func TestEmitWithoutClientIsNoop(t *testing.T) {
	dogstatsd = nil

	assert.NotPanics(t, func() {
		Gauge("temperature", 42)
		Incr("queue.rejected", "source:remote")
		Count("events", 3)
		EventSink{}.Handle(model.Event{Type: model.EventStartedHeating, Mode: model.Heating(model.PresetTea)})
		Close()
	})
}
