package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/preset"
	"github.com/thatsimonsguy/kettle-controller/internal/queue"
	"github.com/thatsimonsguy/kettle-controller/internal/status"
)

var t0 = time.Unix(1_700_000_000, 0)

type fakeRelay struct {
	mu    sync.Mutex
	on    bool
	calls []bool
	errOn error // returned when switching on
	errAll error
}

func (r *fakeRelay) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, on)
	if r.errAll != nil {
		return r.errAll
	}
	if on && r.errOn != nil {
		return r.errOn
	}
	r.on = on
	return nil
}

func (r *fakeRelay) isOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

type recorder struct {
	events []model.Event
}

func (r *recorder) Handle(ev model.Event) { r.events = append(r.events, ev) }

// types returns the non-periodic event types recorded.
func (r *recorder) types() []model.EventType {
	var out []model.EventType
	for _, ev := range r.events {
		if !ev.Periodic() {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *recorder) count(typ model.EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ model.EventType) (model.Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return model.Event{}, false
}

type harness struct {
	ctrl  *Controller
	queue *queue.Queue
	sel   *preset.Selector
	relay *fakeRelay
	rec   *recorder
}

func newHarness(opts Options) *harness {
	h := &harness{
		queue: queue.New(queue.DefaultDepth),
		sel:   preset.NewSelector(),
		relay: &fakeRelay{},
		rec:   &recorder{},
	}
	h.ctrl = New(h.queue, h.sel, h.relay, h.rec, opts)
	return h
}

func (h *harness) push(t *testing.T, cmds ...model.Command) {
	t.Helper()
	for _, c := range cmds {
		_, err := h.queue.Push(c)
		require.NoError(t, err)
	}
}

func start(p model.Preset) model.Command {
	return model.Command{Kind: model.CommandStartHeating, Preset: p, Source: model.SourceRemote}
}

func stop() model.Command {
	return model.Command{Kind: model.CommandStop, Source: model.SourceRemote}
}

func advance() model.Command {
	return model.Command{Kind: model.CommandAdvancePreset, Source: model.SourceLocal}
}

func reading(c float64, at time.Time) model.Reading {
	return model.Reading{Celsius: c, Timestamp: at}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name     string
		setup    []model.Command
		command  model.Command
		wantMode model.DeviceMode
		wantOn   bool
		wantEvts []model.EventType
	}{
		{"idle start", nil, start(model.PresetCafe), model.Heating(model.PresetCafe), true,
			[]model.EventType{model.EventStartedHeating}},
		{"selecting start", []model.Command{advance(), advance()}, start(model.PresetMate), model.Heating(model.PresetMate), true,
			[]model.EventType{model.EventStartedHeating}},
		{"heating stop", []model.Command{start(model.PresetCafe)}, stop(), model.Idle(), false,
			[]model.EventType{model.EventStopped}},
		{"idle advance arms first", nil, advance(), model.Selecting(model.PresetTea), false,
			[]model.EventType{model.EventSelectionChanged}},
		{"selecting advance", []model.Command{advance()}, advance(), model.Selecting(model.PresetMate), false,
			[]model.EventType{model.EventSelectionChanged}},
		{"selecting advance wraps", []model.Command{advance(), advance(), advance(), advance()}, advance(), model.Selecting(model.PresetTea), false,
			[]model.EventType{model.EventSelectionChanged}},
		{"selecting stop", []model.Command{advance()}, stop(), model.Idle(), false,
			[]model.EventType{model.EventSelectionChanged}},
		{"idle stop is a no-op", nil, stop(), model.Idle(), false, nil},
		{"heating start ignored", []model.Command{start(model.PresetCafe)}, start(model.PresetTea), model.Heating(model.PresetCafe), true,
			[]model.EventType{model.EventCommandIgnored}},
		{"heating advance ignored", []model.Command{start(model.PresetCafe)}, advance(), model.Heating(model.PresetCafe), true,
			[]model.EventType{model.EventCommandIgnored}},
		{"invalid preset ignored", nil, start(model.Preset(55)), model.Idle(), false,
			[]model.EventType{model.EventCommandIgnored}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(DefaultOptions())
			for _, c := range tt.setup {
				h.push(t, c)
				h.ctrl.Tick(t0, model.Reading{}, false)
			}
			h.rec.events = nil

			h.push(t, tt.command)
			h.ctrl.Tick(t0.Add(time.Second), model.Reading{}, false)

			assert.Equal(t, tt.wantMode, h.ctrl.Mode())
			assert.Equal(t, tt.wantOn, h.ctrl.RelayOn())
			assert.Equal(t, tt.wantOn, h.relay.isOn())
			assert.Equal(t, tt.wantEvts, h.rec.types())
		})
	}
}

func TestStartHeatingArmsPresetOnlyForLocal(t *testing.T) {
	tests := []struct {
		name   string
		source model.Source
		armed  model.Preset
	}{
		{"local start arms its preset", model.SourceLocal, model.PresetBoil},
		{"remote start keeps local selection", model.SourceRemote, model.PresetTea},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(DefaultOptions())
			h.push(t, model.Command{Kind: model.CommandStartHeating, Preset: model.PresetBoil, Source: tt.source})
			h.ctrl.Tick(t0, model.Reading{}, false)

			require.Equal(t, model.Heating(model.PresetBoil), h.ctrl.Mode())
			assert.Equal(t, tt.armed, h.sel.Armed())
		})
	}
}

func TestRemoteStartDoesNotChangeNextLocalStart(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, advance(), advance())
	h.ctrl.Tick(t0, model.Reading{}, false)
	require.Equal(t, model.Selecting(model.PresetMate), h.ctrl.Mode())

	h.push(t, stop(), start(model.PresetBoil))
	h.ctrl.Tick(t0.Add(time.Second), model.Reading{}, false)
	require.Equal(t, model.Heating(model.PresetBoil), h.ctrl.Mode())
	h.push(t, stop())
	h.ctrl.Tick(t0.Add(2*time.Second), model.Reading{}, false)

	local := h.sel.Intent(model.ButtonEvent{Kind: model.LongPress, PressedAt: t0.Add(3 * time.Second)}, t0.Add(3*time.Second))
	assert.Equal(t, model.CommandStartHeating, local.Kind)
	assert.Equal(t, model.PresetMate, local.Preset)
}

func TestCompletion(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetCafe))
	h.ctrl.Tick(t0, reading(20, t0.Add(-time.Second)), true)
	require.True(t, h.ctrl.Mode().IsHeating())

	h.ctrl.Tick(t0.Add(time.Second), reading(89.9, t0.Add(time.Second)), true)
	assert.True(t, h.ctrl.Mode().IsHeating(), "below target keeps heating")

	h.ctrl.Tick(t0.Add(2*time.Second), reading(90.0, t0.Add(2*time.Second)), true)
	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.relay.isOn())

	ev, ok := h.rec.last(model.EventCompleted)
	require.True(t, ok)
	assert.Equal(t, model.PresetCafe, ev.Target)
	assert.Equal(t, 90.0, ev.Temperature)
	assert.Equal(t, model.PresetCafe, h.ctrl.LastTarget(), "target is kept after completion")
}

func TestCompletionMargin(t *testing.T) {
	opts := DefaultOptions()
	opts.CompletionMargin = 1.5
	h := newHarness(opts)
	h.push(t, start(model.PresetBoil))
	h.ctrl.Tick(t0, model.Reading{}, false)

	h.ctrl.Tick(t0.Add(time.Second), reading(98.4, t0.Add(time.Second)), true)
	assert.True(t, h.ctrl.Mode().IsHeating())

	h.ctrl.Tick(t0.Add(2*time.Second), reading(98.5, t0.Add(2*time.Second)), true)
	assert.True(t, h.ctrl.Mode().IsIdle())
}

func TestStaleReadingNeverCompletes(t *testing.T) {
	h := newHarness(DefaultOptions())

	// last good value from before the cycle started, sensor failing since
	h.ctrl.Tick(t0, reading(99, t0), true)
	h.push(t, start(model.PresetTea))
	h.ctrl.Tick(t0.Add(time.Second), reading(99, t0), true)
	h.ctrl.Tick(t0.Add(2*time.Second), reading(99, t0), true)

	assert.True(t, h.ctrl.Mode().IsHeating())
	assert.Zero(t, h.rec.count(model.EventCompleted))

	h.ctrl.Tick(t0.Add(3*time.Second), model.Reading{}, false)
	assert.True(t, h.ctrl.Mode().IsHeating())
}

func TestCompleteOnStaleReading(t *testing.T) {
	opts := DefaultOptions()
	opts.CompleteOnStaleReading = true
	h := newHarness(opts)

	h.ctrl.Tick(t0, reading(99, t0), true)
	h.push(t, start(model.PresetTea))
	h.ctrl.Tick(t0.Add(time.Second), reading(99, t0), true)
	h.ctrl.Tick(t0.Add(2*time.Second), model.Reading{}, false)

	assert.True(t, h.ctrl.Mode().IsIdle(), "last known value is compared when stale completion is allowed")
	assert.Equal(t, 1, h.rec.count(model.EventCompleted))
}

func TestSensorFaultDoesNotChangeMode(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetTea))
	h.ctrl.Tick(t0, model.Reading{}, false)

	h.ctrl.ReportSensorFault(t0, &model.SensorError{Reason: "crc check failed", At: t0})

	assert.True(t, h.ctrl.Mode().IsHeating())
	ev, ok := h.rec.last(model.EventSensorFault)
	require.True(t, ok)
	assert.Contains(t, ev.Reason, "crc check failed")
}

func TestStartThenStopInSameTick(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetCafe), stop())

	h.ctrl.Tick(t0, model.Reading{}, false)

	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.relay.isOn())
	assert.Equal(t, []model.EventType{model.EventStartedHeating, model.EventStopped}, h.rec.types())
	assert.Equal(t, []bool{true, false}, h.relay.calls)
}

func TestEarlierStartWins(t *testing.T) {
	h := newHarness(DefaultOptions())
	local := model.Command{Kind: model.CommandStartHeating, Preset: model.PresetTea, Source: model.SourceLocal}
	h.push(t, local, start(model.PresetBoil))

	h.ctrl.Tick(t0, model.Reading{}, false)

	assert.Equal(t, model.Heating(model.PresetTea), h.ctrl.Mode())
	assert.Equal(t, []model.EventType{model.EventStartedHeating, model.EventCommandIgnored}, h.rec.types())
}

func TestMaxHeatingCutoff(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxHeating = 10 * time.Minute
	h := newHarness(opts)
	h.push(t, start(model.PresetBoil))
	h.ctrl.Tick(t0, model.Reading{}, false)

	h.ctrl.Tick(t0.Add(9*time.Minute), reading(60, t0.Add(9*time.Minute)), true)
	assert.True(t, h.ctrl.Mode().IsHeating())

	h.ctrl.Tick(t0.Add(10*time.Minute), reading(61, t0.Add(10*time.Minute)), true)
	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.relay.isOn())

	ev, ok := h.rec.last(model.EventSafetyCutoff)
	require.True(t, ok)
	assert.Equal(t, model.SourceFailsafe, ev.Source)
	assert.Contains(t, ev.Reason, "max heating time")
}

func TestSensorStaleCutoff(t *testing.T) {
	opts := DefaultOptions()
	opts.SensorStale = 5 * time.Second
	h := newHarness(opts)
	h.push(t, start(model.PresetBoil))
	h.ctrl.Tick(t0, reading(40, t0), true)

	h.ctrl.Tick(t0.Add(5*time.Second), reading(40, t0), true)
	assert.True(t, h.ctrl.Mode().IsHeating())

	h.ctrl.Tick(t0.Add(6*time.Second), reading(40, t0), true)
	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.Equal(t, 1, h.rec.count(model.EventSafetyCutoff))
}

func TestEvaluateFailsafe(t *testing.T) {
	tests := []struct {
		name       string
		in         failsafeInput
		wantCutoff bool
	}{
		{"all disabled", failsafeInput{now: t0.Add(time.Hour), heatingSince: t0}, false},
		{"under max", failsafeInput{now: t0.Add(time.Minute), heatingSince: t0, maxHeating: 2 * time.Minute}, false},
		{"at max", failsafeInput{now: t0.Add(2 * time.Minute), heatingSince: t0, maxHeating: 2 * time.Minute}, true},
		{"fresh reading", failsafeInput{now: t0.Add(3 * time.Second), heatingSince: t0, hasReading: true,
			reading: reading(50, t0.Add(2*time.Second)), sensorStale: 5 * time.Second}, false},
		{"stale reading", failsafeInput{now: t0.Add(10 * time.Second), heatingSince: t0, hasReading: true,
			reading: reading(50, t0.Add(2*time.Second)), sensorStale: 5 * time.Second}, true},
		{"never read, grace from start", failsafeInput{now: t0.Add(4 * time.Second), heatingSince: t0, sensorStale: 5 * time.Second}, false},
		{"never read, grace over", failsafeInput{now: t0.Add(6 * time.Second), heatingSince: t0, sensorStale: 5 * time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := evaluateFailsafe(tt.in)
			assert.Equal(t, tt.wantCutoff, action.cutoff)
			if tt.wantCutoff {
				assert.NotEmpty(t, action.reason)
			}
		})
	}
}

func TestRelayFaultOnStart(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.relay.errOn = errors.New("relay driver EIO")
	var faultErr error
	h.ctrl.OnRelayFault(func(err error) { faultErr = err })

	h.push(t, start(model.PresetCafe))
	h.ctrl.Tick(t0, model.Reading{}, false)

	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.ctrl.RelayOn())
	assert.Equal(t, []bool{true, false}, h.relay.calls, "best-effort off after failure")
	assert.Equal(t, []model.EventType{model.EventRelayFault}, h.rec.types())
	assert.EqualError(t, faultErr, "relay driver EIO")
}

func TestRelayFaultOnStop(t *testing.T) {
	h := newHarness(DefaultOptions())
	faults := 0
	h.ctrl.OnRelayFault(func(error) { faults++ })
	h.push(t, start(model.PresetCafe))
	h.ctrl.Tick(t0, model.Reading{}, false)

	h.relay.errAll = errors.New("stuck")
	h.push(t, stop())
	h.ctrl.Tick(t0.Add(time.Second), model.Reading{}, false)

	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.ctrl.RelayOn())
	assert.Equal(t, 1, faults)
	assert.Equal(t, 1, h.rec.count(model.EventRelayFault))
}

func TestDisplayAndAnimationCadence(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetBoil))

	for ms := 0; ms <= 1000; ms += 50 {
		h.ctrl.Tick(t0.Add(time.Duration(ms)*time.Millisecond), model.Reading{}, false)
	}

	assert.Equal(t, 6, h.rec.count(model.EventDisplayRefresh))

	var frames []int
	for _, ev := range h.rec.events {
		if ev.Type == model.EventHeatingAnimation {
			frames = append(frames, ev.Frame)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, frames)
}

func TestAnimationStopsWhenIdle(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetBoil))
	h.ctrl.Tick(t0, model.Reading{}, false)
	h.push(t, stop())
	h.ctrl.Tick(t0.Add(50*time.Millisecond), model.Reading{}, false)

	before := h.rec.count(model.EventHeatingAnimation)
	for ms := 100; ms <= 1000; ms += 50 {
		h.ctrl.Tick(t0.Add(time.Duration(ms)*time.Millisecond), model.Reading{}, false)
	}
	assert.Equal(t, before, h.rec.count(model.EventHeatingAnimation))
}

func TestPublishesStatus(t *testing.T) {
	h := newHarness(DefaultOptions())
	tracker := status.NewTracker(t0)
	h.ctrl.SetStatus(tracker, nil)

	h.push(t, start(model.PresetMate))
	h.ctrl.Tick(t0.Add(time.Second), reading(33.5, t0.Add(time.Second)), true)

	snap := tracker.Snapshot()
	assert.True(t, snap.Heating)
	assert.Equal(t, "Mate", snap.ModeName)
	assert.Equal(t, model.PresetMate, snap.Target)
	assert.Equal(t, model.PresetMate, snap.Armed)
	assert.Equal(t, 33.5, snap.Temperature)
	assert.Equal(t, t0.Add(time.Second), snap.HeatingSince)
	assert.True(t, snap.HasReading)
}

func TestShutdownSwitchesRelayOff(t *testing.T) {
	h := newHarness(DefaultOptions())
	h.push(t, start(model.PresetCafe))
	h.ctrl.Tick(t0, model.Reading{}, false)

	h.ctrl.Shutdown(t0.Add(time.Second))

	assert.True(t, h.ctrl.Mode().IsIdle())
	assert.False(t, h.relay.isOn())
	ev, ok := h.rec.last(model.EventStopped)
	require.True(t, ok)
	assert.Equal(t, "shutdown", ev.Reason)
}

func TestConcurrentProducersKeepInvariant(t *testing.T) {
	h := newHarness(DefaultOptions())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				var c model.Command
				switch (i + j) % 3 {
				case 0:
					c = start(model.Presets[j%len(model.Presets)])
				case 1:
					c = stop()
				default:
					c = advance()
				}
				_, _ = h.queue.Push(c)
			}
		}(i)
	}

	now := t0
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		now = now.Add(50 * time.Millisecond)
		h.ctrl.Tick(now, model.Reading{}, false)
		assert.Equal(t, h.ctrl.Mode().IsHeating(), h.ctrl.RelayOn())
		assert.Equal(t, h.ctrl.RelayOn(), h.relay.isOn())
	}
	h.ctrl.Tick(now.Add(50*time.Millisecond), model.Reading{}, false)

	assert.Equal(t, h.ctrl.Mode().IsHeating(), h.relay.isOn())
	assert.Zero(t, h.rec.count(model.EventRelayFault))
}
