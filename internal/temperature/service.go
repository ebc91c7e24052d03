package temperature

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/datadog"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// DS18B20 measurement range and the value it reports before its first
// conversion after power-up.
const (
	MinValidC   = -20.0
	MaxValidC   = 125.0
	PowerOnResC = 85.0
)

// Service polls a Sensor and keeps the last valid reading. A failed read
// never replaces the last good value.
type Service struct {
	sensor Sensor

	mutex       sync.RWMutex
	latest      model.Reading
	hasReading  bool
	faulted     bool
	lastErr     error
	consecutive int
}

func NewService(sensor Sensor) *Service {
	return &Service{sensor: sensor}
}

// Poll takes one sample. It returns a *SensorError only for the first failure
// of a fault episode; later failures in the same episode return nil.
func (s *Service) Poll(now time.Time) *model.SensorError {
	reading, err := s.sensor.Read()
	if err == nil {
		err = s.validate(reading)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err != nil {
		sensorErr := asSensorError(err, now)
		s.lastErr = sensorErr
		s.consecutive++
		datadog.Incr("sensor.errors")

		if s.faulted {
			log.Debug().Err(err).Int("consecutive", s.consecutive).Msg("Sensor still failing")
			return nil
		}
		s.faulted = true
		log.Warn().
			Err(err).
			Float64("last_good", s.latest.Celsius).
			Bool("has_last_good", s.hasReading).
			Msg("Temperature sensor fault")
		return sensorErr
	}

	if s.faulted {
		log.Info().
			Int("failed_reads", s.consecutive).
			Float64("temp", reading.Celsius).
			Msg("Temperature sensor recovered")
	}
	s.faulted = false
	s.consecutive = 0
	s.latest = reading
	s.hasReading = true
	datadog.Gauge("temperature", reading.Celsius)
	return nil
}

func (s *Service) validate(r model.Reading) error {
	if r.Celsius < MinValidC || r.Celsius > MaxValidC {
		return &model.SensorError{Reason: fmt.Sprintf("reading %.2f°C out of range", r.Celsius), At: r.Timestamp}
	}

	s.mutex.RLock()
	first := !s.hasReading
	s.mutex.RUnlock()
	if first && r.Celsius == PowerOnResC {
		return &model.SensorError{Reason: "power-on reset value", At: r.Timestamp}
	}
	return nil
}

func asSensorError(err error, now time.Time) *model.SensorError {
	var se *model.SensorError
	if errors.As(err, &se) {
		if se.At.IsZero() {
			se.At = now
		}
		return se
	}
	return &model.SensorError{Reason: "read failed", At: now, Err: err}
}

// Latest returns the last valid reading and whether one exists.
func (s *Service) Latest() (model.Reading, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.latest, s.hasReading
}

func (s *Service) Faulted() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.faulted
}

func (s *Service) LastError() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastErr
}

func (s *Service) ConsecutiveFailures() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.consecutive
}
