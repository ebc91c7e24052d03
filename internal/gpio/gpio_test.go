package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

func TestButtonActiveLow(t *testing.T) {
	line := &FakeLine{Levels: []bool{true, false, true}}
	b := NewButton(line, model.GPIOPin{Number: 17, ActiveHigh: false})

	for _, want := range []bool{false, true, false} {
		pressed, err := b.Pressed()
		require.NoError(t, err)
		assert.Equal(t, want, pressed)
	}
}

func TestButtonReadError(t *testing.T) {
	line := &FakeLine{ReadErr: errors.New("bus gone")}
	b := NewButton(line, model.GPIOPin{Number: 17, ActiveHigh: true})

	_, err := b.Pressed()
	assert.ErrorContains(t, err, "pin 17")
}

func TestRelayLevels(t *testing.T) {
	SetSafeMode(false)

	tests := []struct {
		name       string
		activeHigh bool
		on         bool
		wantLevel  bool
	}{
		{"active high on", true, true, true},
		{"active high off", true, false, false},
		{"active low on", false, true, false},
		{"active low off", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := &FakeLine{Output: true}
			r := NewRelay("heater", line, model.GPIOPin{Number: 27, ActiveHigh: tt.activeHigh})

			require.NoError(t, r.Set(tt.on))
			level, ok := line.LastWrite()
			require.True(t, ok)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.on, r.Active())
		})
	}
}

func TestRelayWriteFailureKeepsState(t *testing.T) {
	SetSafeMode(false)
	line := &FakeLine{Output: true, WriteErr: errors.New("EBUSY")}
	r := NewRelay("heater", line, model.GPIOPin{Number: 27, ActiveHigh: true})

	err := r.Activate()
	assert.Error(t, err)
	assert.False(t, r.Active())
}

func TestRelaySafeModeSkipsWrites(t *testing.T) {
	SetSafeMode(true)
	defer SetSafeMode(false)

	line := &FakeLine{Output: true}
	r := NewRelay("heater", line, model.GPIOPin{Number: 27, ActiveHigh: true})

	require.NoError(t, r.Activate())
	assert.Empty(t, line.Writes)
	assert.True(t, r.Active())
}

func TestInputLineRejectsWrites(t *testing.T) {
	assert.ErrorIs(t, (&FakeLine{}).SetLevel(true), ErrInputLine)
}

func TestValidateStartupPins(t *testing.T) {
	pins := map[string]model.GPIOPin{
		"heater_relay":     {Number: 27, ActiveHigh: true},
		"main_power_relay": {Number: 22, ActiveHigh: false},
	}

	t.Run("all inactive", func(t *testing.T) {
		levels := map[int]bool{27: false, 22: true}
		err := ValidateStartupPins(pins, func(pin int) (bool, error) { return levels[pin], nil })
		assert.NoError(t, err)
	})

	t.Run("heater active", func(t *testing.T) {
		levels := map[int]bool{27: true, 22: true}
		err := ValidateStartupPins(pins, func(pin int) (bool, error) { return levels[pin], nil })
		assert.ErrorContains(t, err, "heater_relay")
	})

	t.Run("read failure", func(t *testing.T) {
		err := ValidateStartupPins(pins, func(pin int) (bool, error) { return false, errors.New("no pinctrl") })
		assert.Error(t, err)
	})
}
