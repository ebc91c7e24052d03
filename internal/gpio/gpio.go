// Package gpio drives the button input and relay outputs. Lines come from the
// GPIO character device (gpiocdev) or from the pinctrl tool.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Line is a single GPIO line at the raw electrical level.
type Line interface {
	Level() (bool, error)
	SetLevel(high bool) error
	Close() error
}

// LevelFunc reads the raw level of a pin without reconfiguring it.
type LevelFunc func(pin int) (bool, error)

var ErrInputLine = errors.New("gpio: line is an input")

var (
	safeModeMu sync.RWMutex
	safeMode   bool
)

func SetSafeMode(enabled bool) {
	safeModeMu.Lock()
	safeMode = enabled
	safeModeMu.Unlock()
}

func SafeMode() bool {
	safeModeMu.RLock()
	defer safeModeMu.RUnlock()
	return safeMode
}

// Button reports the logical pressed state of a push-button line.
type Button struct {
	line Line
	pin  model.GPIOPin
}

func NewButton(line Line, pin model.GPIOPin) *Button {
	return &Button{line: line, pin: pin}
}

func (b *Button) Pressed() (bool, error) {
	level, err := b.line.Level()
	if err != nil {
		return false, fmt.Errorf("read button pin %d: %w", b.pin.Number, err)
	}
	return level == b.pin.ActiveHigh, nil
}

func (b *Button) Close() error { return b.line.Close() }

// Relay drives an output line by logical state. In safe mode writes are
// skipped and only the requested state is remembered.
type Relay struct {
	name string
	line Line
	pin  model.GPIOPin

	mu     sync.Mutex
	active bool
}

func NewRelay(name string, line Line, pin model.GPIOPin) *Relay {
	return &Relay{name: name, line: line, pin: pin}
}

func (r *Relay) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if SafeMode() {
		log.Debug().Str("relay", r.name).Bool("on", on).Msg("Safe mode, relay write skipped")
		r.active = on
		return nil
	}

	level := on == r.pin.ActiveHigh
	if err := r.line.SetLevel(level); err != nil {
		return fmt.Errorf("set %s relay (pin %d) to %v: %w", r.name, r.pin.Number, on, err)
	}
	r.active = on
	log.Debug().Str("relay", r.name).Int("pin", r.pin.Number).Bool("on", on).Msg("Relay switched")
	return nil
}

func (r *Relay) Activate() error   { return r.Set(true) }
func (r *Relay) Deactivate() error { return r.Set(false) }

// Active is the last state successfully applied.
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Relay) Name() string { return r.name }

func (r *Relay) Close() error { return r.line.Close() }

// ValidateStartupPins refuses to continue when any relay pin is already
// active at boot.
func ValidateStartupPins(pins map[string]model.GPIOPin, read LevelFunc) error {
	for name, pin := range pins {
		level, err := read(pin.Number)
		if err != nil {
			return fmt.Errorf("failed to read pin level for %s (GPIO %d): %w", name, pin.Number, err)
		}
		if level == pin.ActiveHigh {
			return fmt.Errorf("pin %d (%s) is active at startup", pin.Number, name)
		}
	}
	return nil
}
