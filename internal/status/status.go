// Package status holds the read-side view of the device for request
// handlers. Only the control loop writes to it.
package status

import (
	"sync"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Snapshot is a point-in-time copy of device state, safe to use after the
// lock is released.
type Snapshot struct {
	Mode          model.DeviceMode `json:"mode"`
	ModeName      string           `json:"mode_name"`
	Heating       bool             `json:"heating"`
	Target        model.Preset     `json:"target"`
	Armed         model.Preset     `json:"armed"`
	HeatingSince  time.Time        `json:"heating_since,omitempty"`
	Temperature   float64          `json:"temperature"`
	HasReading    bool             `json:"has_reading"`
	ReadingAt     time.Time        `json:"reading_at,omitempty"`
	SensorFault   bool             `json:"sensor_fault"`
	SensorError   string           `json:"sensor_error,omitempty"`
	QueueLen      int              `json:"queue_len"`
	QueueRejected uint64           `json:"queue_rejected"`
	LastEvent     *model.Event     `json:"last_event,omitempty"`
	StartTime     time.Time        `json:"start_time"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Tracker holds the latest snapshot behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTracker(startTime time.Time) *Tracker {
	mode := model.Idle()
	return &Tracker{
		snap: Snapshot{
			Mode:      mode,
			ModeName:  mode.Name(),
			Armed:     model.Presets[0],
			StartTime: startTime,
		},
	}
}

// Publish replaces the device part of the snapshot. The last event and the
// start time are kept.
func (t *Tracker) Publish(s Snapshot) {
	t.mu.Lock()
	s.LastEvent = t.snap.LastEvent
	s.StartTime = t.snap.StartTime
	t.snap = s
	t.mu.Unlock()
}

// Handle records the latest non-periodic event.
func (t *Tracker) Handle(ev model.Event) {
	if ev.Periodic() {
		return
	}
	t.mu.Lock()
	t.snap.LastEvent = &ev
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		ev := *s.LastEvent
		s.LastEvent = &ev
	}
	t.mu.RUnlock()
	return s
}
