//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: character device not supported on this platform (requires Linux)")

type Chip struct{}

func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

type CdevLine struct{}

func (c *Chip) Input(pin int, activeHigh bool) (*CdevLine, error)  { return nil, errUnsupported }
func (c *Chip) Output(pin int, activeHigh bool) (*CdevLine, error) { return nil, errUnsupported }
func (c *Chip) Level(pin int) (bool, error)                         { return false, errUnsupported }
func (c *Chip) Close() error                                        { return nil }

func (l *CdevLine) Level() (bool, error)     { return false, errUnsupported }
func (l *CdevLine) SetLevel(high bool) error { return errUnsupported }
func (l *CdevLine) Close() error             { return nil }
