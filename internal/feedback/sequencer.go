// Package feedback drives the buzzer and the display from controller events
// without ever sleeping in the control loop.
package feedback

import (
	"time"
)

// Note frequencies in Hz.
const (
	NoteC5 = 523
	NoteE5 = 659
	NoteG5 = 784
	NoteA5 = 880
	NoteC6 = 1047
)

// Step is one tone, or a rest when Hz is 0.
type Step struct {
	Hz  int
	Dur time.Duration
}

type Melody []Step

var (
	Startup = Melody{
		{NoteC5, 150 * time.Millisecond},
		{NoteE5, 150 * time.Millisecond},
		{NoteG5, 150 * time.Millisecond},
		{NoteC6, 300 * time.Millisecond},
	}
	Beep       = Melody{{NoteA5, 100 * time.Millisecond}}
	DoubleBeep = Melody{
		{NoteA5, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{NoteA5, 100 * time.Millisecond},
	}
	TripleBeep = Melody{
		{NoteA5, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{NoteA5, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{NoteA5, 100 * time.Millisecond},
	}
	Completion = Melody{
		{NoteG5, 200 * time.Millisecond},
		{NoteC6, 200 * time.Millisecond},
		{NoteE5, 200 * time.Millisecond},
		{NoteG5, 400 * time.Millisecond},
	}
)

type Buzzer interface {
	Tone(hz int)
	Silence()
}

// Sequencer plays one melody at a time. Play starts it and Tick advances it
// against the caller's clock. Not safe for concurrent use.
type Sequencer struct {
	buzzer  Buzzer
	melody  Melody
	idx     int
	stepEnd time.Time
	playing bool
}

func NewSequencer(b Buzzer) *Sequencer {
	return &Sequencer{buzzer: b}
}

// Play replaces whatever is playing.
func (s *Sequencer) Play(m Melody, now time.Time) {
	if len(m) == 0 {
		s.stop()
		return
	}
	s.melody = m
	s.idx = 0
	s.playing = true
	s.startStep(now)
}

func (s *Sequencer) Tick(now time.Time) {
	for s.playing && !now.Before(s.stepEnd) {
		s.idx++
		if s.idx >= len(s.melody) {
			s.stop()
			return
		}
		s.startStep(s.stepEnd)
	}
}

func (s *Sequencer) Playing() bool { return s.playing }

func (s *Sequencer) startStep(at time.Time) {
	step := s.melody[s.idx]
	if step.Hz > 0 {
		s.buzzer.Tone(step.Hz)
	} else {
		s.buzzer.Silence()
	}
	s.stepEnd = at.Add(step.Dur)
}

func (s *Sequencer) stop() {
	if s.playing {
		s.buzzer.Silence()
	}
	s.playing = false
	s.melody = nil
	s.idx = 0
}
