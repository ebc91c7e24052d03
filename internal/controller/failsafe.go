package controller

import (
	"fmt"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

type failsafeInput struct {
	now          time.Time
	heatingSince time.Time
	reading      model.Reading
	hasReading   bool
	maxHeating   time.Duration
	sensorStale  time.Duration
}

type failsafeAction struct {
	cutoff bool
	reason string
}

// evaluateFailsafe decides whether a heating cycle must be cut off. It runs
// only while heating and has no side effects.
func evaluateFailsafe(in failsafeInput) failsafeAction {
	if in.maxHeating > 0 {
		if elapsed := in.now.Sub(in.heatingSince); elapsed >= in.maxHeating {
			return failsafeAction{
				cutoff: true,
				reason: fmt.Sprintf("max heating time %s exceeded", in.maxHeating),
			}
		}
	}

	if in.sensorStale > 0 {
		// with no reading at all, the cycle start is the reference
		last := in.heatingSince
		if in.hasReading {
			last = in.reading.Timestamp
		}
		if age := in.now.Sub(last); age > in.sensorStale {
			return failsafeAction{
				cutoff: true,
				reason: fmt.Sprintf("no valid reading for %s", age.Round(time.Second)),
			}
		}
	}

	return failsafeAction{}
}
