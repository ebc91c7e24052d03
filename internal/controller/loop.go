package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/input"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/preset"
	"github.com/thatsimonsguy/kettle-controller/internal/queue"
)

type Button interface {
	Pressed() (bool, error)
}

// Thermometer is the polling side of the temperature service.
type Thermometer interface {
	Poll(now time.Time) *model.SensorError
	Latest() (model.Reading, bool)
}

// Ticker is advanced once per control tick, e.g. the tone sequencer.
type Ticker interface {
	Tick(now time.Time)
}

type LoopConfig struct {
	ButtonPoll time.Duration
	SensorPoll time.Duration
	Tick       time.Duration
}

// Loop is the single goroutine that owns the classifier, the selector, the
// controller and the sensor cadence.
type Loop struct {
	cfg        LoopConfig
	ctrl       *Controller
	classifier *input.Classifier
	selector   *preset.Selector
	queue      *queue.Queue
	button     Button
	thermo     Thermometer
	tickers    []Ticker

	buttonFailing bool
}

func NewLoop(cfg LoopConfig, ctrl *Controller, classifier *input.Classifier, sel *preset.Selector,
	q *queue.Queue, button Button, thermo Thermometer, tickers ...Ticker) *Loop {
	return &Loop{
		cfg:        cfg,
		ctrl:       ctrl,
		classifier: classifier,
		selector:   sel,
		queue:      q,
		button:     button,
		thermo:     thermo,
		tickers:    tickers,
	}
}

// Run blocks until ctx is cancelled. The relay is always switched off before
// it returns.
func (l *Loop) Run(ctx context.Context) {
	log.Info().
		Dur("button_poll", l.cfg.ButtonPoll).
		Dur("sensor_poll", l.cfg.SensorPoll).
		Dur("tick", l.cfg.Tick).
		Msg("Starting control loop")

	buttonT := time.NewTicker(l.cfg.ButtonPoll)
	defer buttonT.Stop()
	sensorT := time.NewTicker(l.cfg.SensorPoll)
	defer sensorT.Stop()
	tickT := time.NewTicker(l.cfg.Tick)
	defer tickT.Stop()

	l.PollSensor(time.Now())

	for {
		select {
		case <-ctx.Done():
			l.ctrl.Shutdown(time.Now())
			log.Info().Msg("Control loop stopped, relay off")
			return
		case now := <-buttonT.C:
			l.SampleButton(now)
		case now := <-sensorT.C:
			l.PollSensor(now)
		case now := <-tickT.C:
			l.Step(now)
		}
	}
}

// SampleButton feeds one button sample through the classifier and pushes the
// resulting intent. A read error counts as released.
func (l *Loop) SampleButton(now time.Time) {
	pressed, err := l.button.Pressed()
	if err != nil {
		if !l.buttonFailing {
			log.Warn().Err(err).Msg("Button read failed")
		}
		l.buttonFailing = true
		pressed = false
	} else if l.buttonFailing {
		log.Info().Msg("Button read recovered")
		l.buttonFailing = false
	}

	ev, ok := l.classifier.Sample(pressed, now)
	if !ok {
		return
	}

	cmd := l.selector.Intent(ev, now)
	log.Debug().
		Str("press", string(ev.Kind)).
		Str("command", string(cmd.Kind)).
		Int("preset", int(cmd.Preset)).
		Msg("Button press classified")
	if _, err := l.queue.Push(cmd); err != nil {
		log.Warn().Err(err).Str("press", string(ev.Kind)).Msg("Local press dropped")
	}
}

func (l *Loop) PollSensor(now time.Time) {
	if fault := l.thermo.Poll(now); fault != nil {
		l.ctrl.ReportSensorFault(now, fault)
	}
}

func (l *Loop) Step(now time.Time) {
	reading, ok := l.thermo.Latest()
	l.ctrl.Tick(now, reading, ok)
	for _, t := range l.tickers {
		t.Tick(now)
	}
}
