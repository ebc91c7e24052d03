package preset

import (
	"time"

	"github.com/google/uuid"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Selector tracks the armed preset, the one a local long press will start.
// It is owned by the control loop and is not safe for concurrent use.
type Selector struct {
	armed model.Preset
}

func NewSelector() *Selector {
	return &Selector{armed: model.Presets[0]}
}

func (s *Selector) Armed() model.Preset {
	return s.armed
}

// ArmFirst arms the first preset of the cycle, used when leaving Idle.
func (s *Selector) ArmFirst() model.Preset {
	s.armed = model.Presets[0]
	return s.armed
}

func (s *Selector) Advance() model.Preset {
	s.armed = s.armed.Next()
	return s.armed
}

func (s *Selector) Arm(p model.Preset) {
	if p.Valid() {
		s.armed = p
	}
}

// Intent maps a classified button event to the command the local input path
// submits. A short press asks for the next preset; a long press confirms the
// armed one.
func (s *Selector) Intent(ev model.ButtonEvent, now time.Time) model.Command {
	cmd := model.Command{
		ID:       uuid.NewString(),
		Source:   model.SourceLocal,
		IssuedAt: now,
	}
	switch ev.Kind {
	case model.LongPress:
		cmd.Kind = model.CommandStartHeating
		cmd.Preset = s.armed
	default:
		cmd.Kind = model.CommandAdvancePreset
	}
	return cmd
}
