package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/env"
	"github.com/thatsimonsguy/kettle-controller/internal/pinctrl"
)

// Deactivator is a load that must be switched off before the process exits.
type Deactivator interface {
	Deactivate() error
}

var (
	mu      sync.Mutex
	devices []namedDevice
	hooks   []func()
	done    bool
)

type namedDevice struct {
	name string
	dev  Deactivator
}

// ExitFunc is replaced in tests.
var ExitFunc = os.Exit

// Register adds a device to switch off on shutdown. Devices are switched off
// in registration order, so register the heater before main power.
func Register(name string, dev Deactivator) {
	mu.Lock()
	defer mu.Unlock()
	devices = append(devices, namedDevice{name: name, dev: dev})
}

// OnShutdown registers fn to run after the devices are off, e.g. flushing
// sinks and publishing a shutdown notice.
func OnShutdown(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	hooks = append(hooks, fn)
}

func Shutdown() {
	run(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	run(1)
}

func run(code int) {
	mu.Lock()
	if done {
		mu.Unlock()
		return
	}
	done = true
	devs := append([]namedDevice(nil), devices...)
	fns := append([]func(){}, hooks...)
	mu.Unlock()

	failed := false
	for _, d := range devs {
		if err := d.dev.Deactivate(); err != nil {
			log.Error().Err(err).Str("device", d.name).Msg("Failed to deactivate device on shutdown")
			failed = true
			continue
		}
		log.Info().Str("device", d.name).Msg("Device deactivated")
	}

	if failed {
		forceMainPowerOff()
	}

	for _, fn := range fns {
		fn()
	}

	ExitFunc(code)
}

// forceMainPowerOff cuts main power through pinctrl when a device could not
// be switched off through its own line.
func forceMainPowerOff() {
	if env.Cfg == nil || env.Cfg.SafeMode || env.Cfg.GPIO.MainPowerRelay == nil {
		return
	}
	pin := env.Cfg.GPIO.MainPowerRelay
	if err := pinctrl.Drive(pin.Pin, !pin.ActiveHigh); err != nil {
		log.Error().Err(err).Int("pin", pin.Pin).Msg("Failed to force main power off")
		return
	}
	log.Warn().Int("pin", pin.Pin).Msg("Main power relay forced off via pinctrl")
}

// reset clears registrations; used by tests.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	devices = nil
	hooks = nil
	done = false
}
