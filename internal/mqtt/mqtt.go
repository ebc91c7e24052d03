// Package mqtt publishes kettle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Topic suffixes under the configured prefix.
const (
	TopicEvents = "events"
	TopicSystem = "system"
)

// System lifecycle events.
const (
	SystemStartup  = "STARTUP"
	SystemShutdown = "SHUTDOWN"
)

// Publisher publishes events to MQTT. Errors are reported to the caller and
// never crash the process.
type Publisher interface {
	Publish(ev model.Event) error
	PublishSystem(ev SystemEvent) error
	Close() error
}

type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
}

type Payload struct {
	Kettle KettlePayload `json:"kettle"`
}

type KettlePayload struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Event       string  `json:"event"`
	Mode        string  `json:"mode"`
	Target      int     `json:"target,omitempty"`
	Temperature float64 `json:"temperature"`
	Source      string  `json:"source,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

func FormatPayload(ev model.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Kettle: KettlePayload{
			ID:          ev.ID,
			Timestamp:   ev.At.UTC().Format(time.RFC3339),
			Event:       string(ev.Type),
			Mode:        ev.Mode.Name(),
			Target:      int(ev.Target),
			Temperature: ev.Temperature,
			Source:      string(ev.Source),
			Reason:      ev.Reason,
		},
	})
}

type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

func FormatSystemPayload(ev SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Event:     ev.Event,
			Reason:    ev.Reason,
		},
	})
}

// Topic joins the configured prefix and a suffix.
func Topic(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}
