package preset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

func TestAdvanceClosedCycle(t *testing.T) {
	s := NewSelector()
	assert.Equal(t, model.PresetTea, s.Armed())

	got := []model.Preset{s.Advance(), s.Advance(), s.Advance(), s.Advance()}

	assert.Equal(t, []model.Preset{model.PresetMate, model.PresetCafe, model.PresetBoil, model.PresetTea}, got)
	assert.Equal(t, model.PresetTea, s.Armed())
}

func TestArmFirstResetsCycle(t *testing.T) {
	s := NewSelector()
	s.Advance()
	s.Advance()

	assert.Equal(t, model.PresetTea, s.ArmFirst())
}

func TestArmIgnoresInvalidPreset(t *testing.T) {
	s := NewSelector()
	s.Arm(model.PresetCafe)
	s.Arm(model.Preset(55))

	assert.Equal(t, model.PresetCafe, s.Armed())
}

func TestIntent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewSelector()
	s.Arm(model.PresetBoil)

	short := s.Intent(model.ButtonEvent{Kind: model.ShortPress}, now)
	assert.Equal(t, model.CommandAdvancePreset, short.Kind)
	assert.Equal(t, model.SourceLocal, short.Source)
	assert.NotEmpty(t, short.ID)

	long := s.Intent(model.ButtonEvent{Kind: model.LongPress}, now)
	assert.Equal(t, model.CommandStartHeating, long.Kind)
	assert.Equal(t, model.PresetBoil, long.Preset)
	assert.Equal(t, now, long.IssuedAt)
	assert.NotEqual(t, short.ID, long.ID)
}
