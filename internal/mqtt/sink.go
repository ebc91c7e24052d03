package mqtt

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Sink adapts a Publisher to events.Sink. Periodic events are skipped. It
// blocks on the broker, so wrap it in events.Async.
type Sink struct {
	Publisher Publisher
}

func (s Sink) Handle(ev model.Event) {
	if ev.Periodic() {
		return
	}
	if err := s.Publisher.Publish(ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("MQTT publish failed")
	}
}
