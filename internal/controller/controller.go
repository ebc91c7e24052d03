// Package controller owns the kettle state. All mutations happen inside Tick,
// on the control loop goroutine, from commands drained off the queue.
package controller

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/events"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/preset"
	"github.com/thatsimonsguy/kettle-controller/internal/queue"
	"github.com/thatsimonsguy/kettle-controller/internal/status"
)

// Relay switches the heating element.
type Relay interface {
	Set(on bool) error
}

// SensorStatus exposes sensor health for the status snapshot.
type SensorStatus interface {
	Faulted() bool
	LastError() error
}

type Options struct {
	CompletionMargin float64
	DisplayRefresh   time.Duration
	Animation        time.Duration
	MaxHeating       time.Duration // 0 disables
	SensorStale      time.Duration // 0 disables

	// CompleteOnStaleReading lets a reading taken before heating started
	// complete the cycle. Off by default: only fresh readings complete.
	CompleteOnStaleReading bool
}

func DefaultOptions() Options {
	return Options{
		DisplayRefresh: 200 * time.Millisecond,
		Animation:      300 * time.Millisecond,
	}
}

type Controller struct {
	opts     Options
	queue    *queue.Queue
	selector *preset.Selector
	relay    Relay
	sink     events.Sink
	tracker  *status.Tracker
	sensor   SensorStatus
	onFault  func(error)

	mode         model.DeviceMode
	relayOn      bool
	lastTarget   model.Preset
	heatingSince time.Time

	reading    model.Reading
	hasReading bool

	frame         int
	lastAnimation time.Time
	lastRefresh   time.Time
}

func New(q *queue.Queue, sel *preset.Selector, relay Relay, sink events.Sink, opts Options) *Controller {
	if sink == nil {
		sink = events.Fanout{}
	}
	return &Controller{
		opts:     opts,
		queue:    q,
		selector: sel,
		relay:    relay,
		sink:     sink,
		mode:     model.Idle(),
	}
}

// SetStatus makes Tick publish a snapshot to t after every tick.
func (c *Controller) SetStatus(t *status.Tracker, sensor SensorStatus) {
	c.tracker = t
	c.sensor = sensor
}

// OnRelayFault registers the handler called after a failed relay write.
func (c *Controller) OnRelayFault(fn func(error)) {
	c.onFault = fn
}

func (c *Controller) Mode() model.DeviceMode { return c.mode }
func (c *Controller) RelayOn() bool           { return c.relayOn }
func (c *Controller) LastTarget() model.Preset {
	return c.lastTarget
}

// Tick runs one control step. reading is the latest valid sample from the
// temperature service; ok is false when none exists yet.
func (c *Controller) Tick(now time.Time, reading model.Reading, ok bool) {
	if ok {
		c.reading = reading
		c.hasReading = true
	}

	for _, cmd := range c.queue.Drain() {
		c.apply(cmd, now)
	}

	if c.mode.IsHeating() {
		c.evaluateHeating(now)
	}

	if c.lastRefresh.IsZero() || now.Sub(c.lastRefresh) >= c.opts.DisplayRefresh {
		c.lastRefresh = now
		c.emit(model.EventDisplayRefresh, now, "", "")
	}

	if c.mode.IsHeating() && (c.lastAnimation.IsZero() || now.Sub(c.lastAnimation) >= c.opts.Animation) {
		c.lastAnimation = now
		ev := c.event(model.EventHeatingAnimation, now, "", "")
		ev.Frame = c.frame
		c.frame++
		c.sink.Handle(ev)
	}

	c.checkInvariant(now)
	c.publish(now)
}

// evaluateHeating compares the last valid reading against the target. Unless
// CompleteOnStaleReading is set, the reading must be taken since heating
// started, so a sensor that failed before the cycle can never complete it.
func (c *Controller) evaluateHeating(now time.Time) {
	target := c.mode.Preset
	fresh := !c.reading.Timestamp.Before(c.heatingSince)
	if c.hasReading && (fresh || c.opts.CompleteOnStaleReading) &&
		c.reading.Celsius >= float64(target)-c.opts.CompletionMargin {
		log.Info().
			Int("target", int(target)).
			Float64("temp", c.reading.Celsius).
			Dur("elapsed", now.Sub(c.heatingSince)).
			Msg("Target temperature reached")
		c.stopHeating(now, model.EventCompleted, "", "")
		return
	}

	action := evaluateFailsafe(failsafeInput{
		now:          now,
		heatingSince: c.heatingSince,
		reading:      c.reading,
		hasReading:   c.hasReading,
		maxHeating:   c.opts.MaxHeating,
		sensorStale:  c.opts.SensorStale,
	})
	if action.cutoff {
		log.Warn().
			Str("reason", action.reason).
			Int("target", int(target)).
			Float64("last_temp", c.reading.Celsius).
			Msg("Failsafe cutoff, stopping heater")
		c.stopHeating(now, model.EventSafetyCutoff, model.SourceFailsafe, action.reason)
	}
}

func (c *Controller) apply(cmd model.Command, now time.Time) {
	log.Debug().
		Str("command", string(cmd.Kind)).
		Int("preset", int(cmd.Preset)).
		Str("source", string(cmd.Source)).
		Uint64("seq", cmd.Seq).
		Str("mode", c.mode.String()).
		Msg("Applying command")

	switch cmd.Kind {
	case model.CommandStartHeating:
		switch {
		case !cmd.Preset.Valid():
			c.ignore(cmd, now, fmt.Sprintf("invalid preset %d", int(cmd.Preset)))
		case c.mode.IsHeating():
			c.ignore(cmd, now, "already heating")
		default:
			c.startHeating(cmd, now)
		}

	case model.CommandStop:
		switch c.mode.Kind {
		case model.ModeHeating:
			c.stopHeating(now, model.EventStopped, cmd.Source, "")
		case model.ModeSelecting:
			c.mode = model.Idle()
			c.emit(model.EventSelectionChanged, now, cmd.Source, "")
		default:
			log.Debug().Str("source", string(cmd.Source)).Msg("Stop while idle, nothing to do")
		}

	case model.CommandAdvancePreset:
		switch c.mode.Kind {
		case model.ModeIdle:
			c.mode = model.Selecting(c.selector.ArmFirst())
			c.emit(model.EventSelectionChanged, now, cmd.Source, "")
		case model.ModeSelecting:
			c.mode = model.Selecting(c.selector.Advance())
			c.emit(model.EventSelectionChanged, now, cmd.Source, "")
		default:
			c.ignore(cmd, now, "preset locked while heating")
		}

	default:
		c.ignore(cmd, now, "unknown command")
	}
}

func (c *Controller) startHeating(cmd model.Command, now time.Time) {
	if err := c.relay.Set(true); err != nil {
		c.relayFault(now, err)
		return
	}
	c.relayOn = true
	c.mode = model.Heating(cmd.Preset)
	if cmd.Source == model.SourceLocal {
		// remote starts leave the local selection alone
		c.selector.Arm(cmd.Preset)
	}
	c.lastTarget = cmd.Preset
	c.heatingSince = now
	c.frame = 0
	c.lastAnimation = time.Time{}

	log.Info().
		Int("target", int(cmd.Preset)).
		Str("source", string(cmd.Source)).
		Str("command_id", cmd.ID).
		Msg("Heating started")
	c.emit(model.EventStartedHeating, now, cmd.Source, "")
}

// stopHeating turns the relay off and returns to Idle, emitting typ.
func (c *Controller) stopHeating(now time.Time, typ model.EventType, source model.Source, reason string) {
	if err := c.relay.Set(false); err != nil {
		c.relayFault(now, err)
		return
	}
	c.relayOn = false
	c.mode = model.Idle()
	log.Info().
		Str("event", string(typ)).
		Str("source", string(source)).
		Dur("elapsed", now.Sub(c.heatingSince)).
		Msg("Heating ended")
	c.emit(typ, now, source, reason)
}

// relayFault forces the safe state after a failed relay write.
func (c *Controller) relayFault(now time.Time, err error) {
	log.Error().Err(err).Str("mode", c.mode.String()).Msg("Relay actuation failed, forcing relay off")
	if offErr := c.relay.Set(false); offErr != nil {
		log.Error().Err(offErr).Msg("Best-effort relay off failed")
	}
	c.relayOn = false
	c.mode = model.Idle()
	c.emit(model.EventRelayFault, now, model.SourceFailsafe, err.Error())
	if c.onFault != nil {
		c.onFault(err)
	}
}

func (c *Controller) ignore(cmd model.Command, now time.Time, reason string) {
	log.Info().
		Str("command", string(cmd.Kind)).
		Str("source", string(cmd.Source)).
		Str("mode", c.mode.String()).
		Str("reason", reason).
		Msg("Command ignored")
	c.emit(model.EventCommandIgnored, now, cmd.Source, reason)
}

// ReportSensorFault emits SensorFault for the start of a fault episode. Mode
// is not changed.
func (c *Controller) ReportSensorFault(now time.Time, err *model.SensorError) {
	c.emit(model.EventSensorFault, now, "", err.Error())
}

// Shutdown forces the relay off, used when the loop exits.
func (c *Controller) Shutdown(now time.Time) {
	if c.mode.IsHeating() {
		c.stopHeating(now, model.EventStopped, model.SourceFailsafe, "shutdown")
	}
	if err := c.relay.Set(false); err != nil {
		log.Error().Err(err).Msg("Failed to switch relay off on shutdown")
	}
	c.relayOn = false
	c.publish(now)
}

func (c *Controller) checkInvariant(now time.Time) {
	if c.relayOn == c.mode.IsHeating() {
		return
	}
	log.Error().
		Bool("relay_on", c.relayOn).
		Str("mode", c.mode.String()).
		Msg("Relay and mode disagree, forcing safe state")
	if err := c.relay.Set(false); err != nil {
		log.Error().Err(err).Msg("Best-effort relay off failed")
	}
	c.relayOn = false
	c.mode = model.Idle()
	c.emit(model.EventRelayFault, now, model.SourceFailsafe, "relay and mode disagree")
}

func (c *Controller) event(typ model.EventType, now time.Time, source model.Source, reason string) model.Event {
	ev := model.Event{
		Type:        typ,
		At:          now,
		Mode:        c.mode,
		Target:      c.lastTarget,
		Temperature: c.reading.Celsius,
		Source:      source,
		Reason:      reason,
	}
	if !ev.Periodic() {
		ev.ID = uuid.NewString()
	}
	return ev
}

func (c *Controller) emit(typ model.EventType, now time.Time, source model.Source, reason string) {
	c.sink.Handle(c.event(typ, now, source, reason))
}

func (c *Controller) publish(now time.Time) {
	if c.tracker == nil {
		return
	}
	snap := status.Snapshot{
		Mode:          c.mode,
		ModeName:      c.mode.Name(),
		Heating:       c.mode.IsHeating(),
		Target:        c.lastTarget,
		Armed:         c.selector.Armed(),
		Temperature:   c.reading.Celsius,
		HasReading:    c.hasReading,
		ReadingAt:     c.reading.Timestamp,
		QueueLen:      c.queue.Len(),
		QueueRejected: c.queue.Rejected(),
		UpdatedAt:     now,
	}
	if c.mode.IsHeating() {
		snap.HeatingSince = c.heatingSince
	}
	if c.sensor != nil {
		snap.SensorFault = c.sensor.Faulted()
		if err := c.sensor.LastError(); err != nil && snap.SensorFault {
			snap.SensorError = err.Error()
		}
	}
	c.tracker.Publish(snap)
}
