package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

func TestNewTrackerStartsIdle(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tr := NewTracker(start)

	snap := tr.Snapshot()
	assert.True(t, snap.Mode.IsIdle())
	assert.Equal(t, model.IdleName, snap.ModeName)
	assert.Equal(t, model.PresetTea, snap.Armed)
	assert.Equal(t, start, snap.StartTime)
	assert.Nil(t, snap.LastEvent)
}

func TestPublishKeepsLastEventAndStartTime(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tr := NewTracker(start)

	tr.Handle(model.Event{Type: model.EventStartedHeating, Target: model.PresetCafe})
	tr.Handle(model.Event{Type: model.EventDisplayRefresh})
	tr.Publish(Snapshot{Mode: model.Heating(model.PresetCafe), Heating: true, Target: model.PresetCafe})

	snap := tr.Snapshot()
	require.NotNil(t, snap.LastEvent)
	assert.Equal(t, model.EventStartedHeating, snap.LastEvent.Type)
	assert.Equal(t, start, snap.StartTime)
	assert.True(t, snap.Heating)

	snap.LastEvent.Type = model.EventStopped
	assert.Equal(t, model.EventStartedHeating, tr.Snapshot().LastEvent.Type, "snapshot must be a copy")
}

func TestConcurrentReaders(t *testing.T) {
	tr := NewTracker(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		tr.Publish(Snapshot{QueueLen: j})
		tr.Handle(model.Event{Type: model.EventStopped})
	}
	wg.Wait()

	assert.Equal(t, 99, tr.Snapshot().QueueLen)
}
