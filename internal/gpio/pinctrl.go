package gpio

import (
	"fmt"

	"github.com/thatsimonsguy/kettle-controller/internal/pinctrl"
)

// PinctrlLine drives a pin by shelling out to pinctrl.
type PinctrlLine struct {
	pin    int
	output bool
}

// OpenPinctrlInput configures pin as an input with a pull towards its
// inactive level.
func OpenPinctrlInput(pin int, activeHigh bool) (*PinctrlLine, error) {
	pull := "pu"
	if activeHigh {
		pull = "pd"
	}
	if err := pinctrl.SetPin(pin, "ip", pull); err != nil {
		return nil, fmt.Errorf("configure input pin %d: %w", pin, err)
	}
	return &PinctrlLine{pin: pin}, nil
}

// OpenPinctrlOutput configures pin as an output driven to its inactive level.
func OpenPinctrlOutput(pin int, activeHigh bool) (*PinctrlLine, error) {
	if err := pinctrl.Drive(pin, !activeHigh); err != nil {
		return nil, fmt.Errorf("configure output pin %d: %w", pin, err)
	}
	return &PinctrlLine{pin: pin, output: true}, nil
}

func (l *PinctrlLine) Level() (bool, error) {
	return pinctrl.ReadLevel(l.pin)
}

func (l *PinctrlLine) SetLevel(high bool) error {
	if !l.output {
		return ErrInputLine
	}
	return pinctrl.Drive(l.pin, high)
}

func (l *PinctrlLine) Close() error { return nil }

// PinctrlLevel reads a pin without touching its configuration.
func PinctrlLevel(pin int) (bool, error) {
	return pinctrl.ReadLevel(pin)
}
