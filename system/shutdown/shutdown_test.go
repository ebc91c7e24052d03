package shutdown

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/kettle-controller/internal/config"
	"github.com/thatsimonsguy/kettle-controller/internal/env"
)

type fakeDevice struct {
	name  string
	err   error
	order *[]string
}

func (d *fakeDevice) Deactivate() error {
	*d.order = append(*d.order, d.name)
	return d.err
}

func setup(t *testing.T) *[]int {
	t.Helper()
	reset()
	env.Cfg = &config.Config{SafeMode: true}
	codes := &[]int{}
	ExitFunc = func(code int) { *codes = append(*codes, code) }
	t.Cleanup(func() {
		reset()
		ExitFunc = os.Exit
	})
	return codes
}

func TestShutdownDeactivatesInOrder(t *testing.T) {
	codes := setup(t)
	var order []string
	Register("heater", &fakeDevice{name: "heater", order: &order})
	Register("main_power", &fakeDevice{name: "main_power", order: &order})
	hookRan := false
	OnShutdown(func() { hookRan = true })

	Shutdown()

	assert.Equal(t, []string{"heater", "main_power"}, order)
	assert.True(t, hookRan)
	assert.Equal(t, []int{0}, *codes)
}

func TestShutdownWithErrorExitsNonZero(t *testing.T) {
	codes := setup(t)
	var order []string
	Register("heater", &fakeDevice{name: "heater", err: errors.New("EIO"), order: &order})
	Register("main_power", &fakeDevice{name: "main_power", order: &order})

	ShutdownWithError(errors.New("relay fault"), "Relay fault, shutting down")

	assert.Equal(t, []string{"heater", "main_power"}, order, "a failing device does not stop the rest")
	assert.Equal(t, []int{1}, *codes)
}

func TestShutdownRunsOnce(t *testing.T) {
	codes := setup(t)
	var order []string
	Register("heater", &fakeDevice{name: "heater", order: &order})

	Shutdown()
	ShutdownWithError(errors.New("late"), "second call")

	assert.Equal(t, []string{"heater"}, order)
	assert.Equal(t, []int{0}, *codes)
}
