//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip hands out lines from a GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: c}, nil
}

// CdevLine is a requested line on the chip.
type CdevLine struct {
	line   *gpiocdev.Line
	output bool
	pull   gpiocdev.LineBias
}

// Input requests pin as an input biased towards its inactive level.
func (c *Chip) Input(pin int, activeHigh bool) (*CdevLine, error) {
	pull := gpiocdev.WithPullUp
	if activeHigh {
		pull = gpiocdev.WithPullDown
	}
	l, err := c.chip.RequestLine(pin, gpiocdev.AsInput, pull)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &CdevLine{line: l, pull: pull}, nil
}

// Output requests pin as an output starting at its inactive level.
func (c *Chip) Output(pin int, activeHigh bool) (*CdevLine, error) {
	initial := 1
	if activeHigh {
		initial = 0
	}
	l, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &CdevLine{line: l, output: true}, nil
}

// Level reads pin as-is, leaving its direction untouched. Used for startup
// validation before lines are requested.
func (c *Chip) Level(pin int) (bool, error) {
	l, err := c.chip.RequestLine(pin, gpiocdev.AsIs)
	if err != nil {
		return false, fmt.Errorf("request pin %d: %w", pin, err)
	}
	defer l.Close()
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

func (c *Chip) Close() error {
	return c.chip.Close()
}

func (l *CdevLine) Level() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

func (l *CdevLine) SetLevel(high bool) error {
	if !l.output {
		return ErrInputLine
	}
	v := 0
	if high {
		v = 1
	}
	return l.line.SetValue(v)
}

// Close returns input lines to their boot bias before releasing them.
func (l *CdevLine) Close() error {
	var errs []error
	if !l.output {
		if err := l.line.Reconfigure(gpiocdev.AsInput, l.pull); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
