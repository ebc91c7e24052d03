// Package input turns raw button samples into classified press events.
// It has no I/O and no knowledge of device state; time is always injected.
package input

import (
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

const (
	DefaultDebounce           = 50 * time.Millisecond
	DefaultLongPressThreshold = 1000 * time.Millisecond
)

// Classifier debounces a button level and emits at most one ButtonEvent per
// press-release cycle. Both edges are debounced: a confirmed press ends only
// once the released level has lasted the debounce window, so a contact glitch
// mid-hold neither splits the cycle nor resets the long-press timer.
type Classifier struct {
	debounce  time.Duration
	longPress time.Duration

	rawPressed bool      // last raw sample
	edgeAt     time.Time // time of the released->pressed edge that started the cycle
	releaseAt  time.Time // first released sample of a pending release
	confirmed  bool      // press has outlasted the debounce window
	longFired  bool
}

func NewClassifier(debounce, longPress time.Duration) *Classifier {
	return &Classifier{debounce: debounce, longPress: longPress}
}

// Sample feeds one raw level at the polling cadence. It returns the event
// produced by this sample, if any.
func (c *Classifier) Sample(pressed bool, now time.Time) (model.ButtonEvent, bool) {
	switch {
	case pressed && !c.rawPressed:
		c.rawPressed = true
		if c.confirmed {
			// released for less than the debounce window, same cycle
			c.releaseAt = time.Time{}
			return c.checkLong(now)
		}
		c.edgeAt = now
		c.longFired = false
		if c.debounce <= 0 {
			c.confirmed = true
		}
		return c.checkLong(now)

	case pressed && c.rawPressed:
		if !c.confirmed && now.Sub(c.edgeAt) >= c.debounce {
			c.confirmed = true
		}
		return c.checkLong(now)

	case !pressed && c.rawPressed:
		c.rawPressed = false
		if !c.confirmed {
			// bounce or glitch shorter than the debounce window
			return model.ButtonEvent{}, false
		}
		c.releaseAt = now
		if c.debounce <= 0 {
			return c.release()
		}

	case !pressed && !c.rawPressed:
		if c.confirmed && now.Sub(c.releaseAt) >= c.debounce {
			return c.release()
		}
	}

	return model.ButtonEvent{}, false
}

// release ends a confirmed cycle, reporting a short press unless the long
// press already fired.
func (c *Classifier) release() (model.ButtonEvent, bool) {
	c.confirmed = false
	releasedAt := c.releaseAt
	c.releaseAt = time.Time{}
	if c.longFired {
		return model.ButtonEvent{}, false
	}
	return model.ButtonEvent{
		Kind:       model.ShortPress,
		PressedAt:  c.edgeAt,
		ReleasedAt: releasedAt,
	}, true
}

func (c *Classifier) checkLong(now time.Time) (model.ButtonEvent, bool) {
	if !c.confirmed || c.longFired {
		return model.ButtonEvent{}, false
	}
	if now.Sub(c.edgeAt) < c.longPress {
		return model.ButtonEvent{}, false
	}
	c.longFired = true
	return model.ButtonEvent{
		Kind:      model.LongPress,
		PressedAt: c.edgeAt,
	}, true
}

// Held reports whether a confirmed press is in progress, including a release
// that has not yet lasted the debounce window.
func (c *Classifier) Held() bool {
	return c.confirmed
}
