package device

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Switch is an output that can be driven on or off, usually a *gpio.Relay.
type Switch interface {
	Set(on bool) error
}

// Device is a named load behind a relay. It logs every change and records
// when the state last changed.
type Device struct {
	Name string
	sw   Switch
	now  func() time.Time

	mu          sync.Mutex
	isOn        bool
	lastChanged time.Time
}

func New(name string, sw Switch) *Device {
	return &Device{Name: name, sw: sw, now: time.Now}
}

func (d *Device) Set(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sw.Set(on); err != nil {
		log.Error().Err(err).Str("device", d.Name).Bool("on", on).Msg("Failed to switch device")
		return err
	}

	if on != d.isOn {
		if on {
			log.Info().Str("device", d.Name).Msg("Turned ON")
		} else {
			log.Info().Str("device", d.Name).Msg("Turned OFF")
		}
		d.lastChanged = d.now()
	}
	d.isOn = on
	return nil
}

func (d *Device) Activate() error   { return d.Set(true) }
func (d *Device) Deactivate() error { return d.Set(false) }

func (d *Device) IsOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isOn
}

func (d *Device) LastChanged() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastChanged
}
