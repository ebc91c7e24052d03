package feedback

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

const SnakeFrames = 6

type Display interface {
	ShowClock(t time.Time)
	ShowNumber(n int)
	ShowSnake(frame int)
}

// Presenter maps controller events onto tones and display output. It runs on
// the control loop goroutine, which also calls Tick.
type Presenter struct {
	seq     *Sequencer
	display Display
}

func NewPresenter(b Buzzer, d Display) *Presenter {
	return &Presenter{seq: NewSequencer(b), display: d}
}

func (p *Presenter) Tick(now time.Time) {
	p.seq.Tick(now)
}

func (p *Presenter) PlayStartup(now time.Time) {
	p.seq.Play(Startup, now)
}

func (p *Presenter) Handle(ev model.Event) {
	switch ev.Type {
	case model.EventStartedHeating:
		if ev.Source == model.SourceLocal {
			p.seq.Play(DoubleBeep, ev.At)
		} else {
			p.seq.Play(Beep, ev.At)
		}
	case model.EventStopped, model.EventSelectionChanged:
		p.seq.Play(Beep, ev.At)
	case model.EventCompleted:
		p.seq.Play(Completion, ev.At)
	case model.EventSafetyCutoff, model.EventRelayFault:
		p.seq.Play(TripleBeep, ev.At)
	case model.EventDisplayRefresh:
		switch {
		case ev.Mode.IsIdle():
			p.display.ShowClock(ev.At)
		case ev.Mode.IsSelecting():
			p.display.ShowNumber(int(ev.Mode.Preset))
		}
		// while heating the animation owns the display
	case model.EventHeatingAnimation:
		p.display.ShowSnake(ev.Frame % SnakeFrames)
	}
}

// LogBuzzer stands in for a tone driver.
type LogBuzzer struct{}

func (LogBuzzer) Tone(hz int) { log.Debug().Int("hz", hz).Msg("Buzzer tone") }
func (LogBuzzer) Silence()    { log.Debug().Msg("Buzzer silent") }

// LogDisplay stands in for the 4-digit display and logs only when the shown
// content changes.
type LogDisplay struct {
	last string
}

func (d *LogDisplay) ShowClock(t time.Time) { d.show(t.Format("15:04")) }
func (d *LogDisplay) ShowNumber(n int)      { d.show(fmt.Sprintf("%4d", n)) }
func (d *LogDisplay) ShowSnake(frame int)   { d.show(fmt.Sprintf("snake:%d", frame)) }

func (d *LogDisplay) show(content string) {
	if content == d.last {
		return
	}
	d.last = content
	log.Debug().Str("content", content).Msg("Display updated")
}
