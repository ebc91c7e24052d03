package temperature

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Sensor is the contract the control loop polls.
type Sensor interface {
	Read() (model.Reading, error)
}

// DS18B20 reads a 1-Wire probe through the w1-therm sysfs interface.
type DS18B20 struct {
	Path string // device directory, e.g. /sys/bus/w1/devices/28-xxxx
	now  func() time.Time
}

func NewDS18B20(path string) *DS18B20 {
	return &DS18B20{Path: path, now: time.Now}
}

func (d *DS18B20) Read() (model.Reading, error) {
	at := d.now()
	data, err := os.ReadFile(filepath.Join(d.Path, "w1_slave"))
	if err != nil {
		return model.Reading{}, &model.SensorError{Reason: "read failed", At: at, Err: err}
	}

	celsius, err := parseW1Slave(string(data))
	if err != nil {
		return model.Reading{}, &model.SensorError{Reason: "malformed data", At: at, Err: err}
	}
	return model.Reading{Celsius: celsius, Timestamp: at}, nil
}

// parseW1Slave parses the two-line w1_slave format:
//
//	4b 01 4b 46 7f ff 05 10 d8 : crc=d8 YES
//	4b 01 4b 46 7f ff 05 10 d8 t=20687
func parseW1Slave(data string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("crc check failed: %q", lines[0])
	}

	parts := strings.Split(lines[1], "t=")
	if len(parts) != 2 {
		return 0, fmt.Errorf("temperature field missing: %q", lines[1])
	}

	milliC, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("convert temperature: %w", err)
	}
	return float64(milliC) / 1000.0, nil
}

// FakeSensor returns scripted results. When the script is exhausted the last
// entry repeats.
type FakeSensor struct {
	Results []FakeResult
	idx     int
}

type FakeResult struct {
	Celsius float64
	Err     error
}

func (f *FakeSensor) Read() (model.Reading, error) {
	if len(f.Results) == 0 {
		return model.Reading{}, &model.SensorError{Reason: "no samples configured"}
	}
	r := f.Results[f.idx]
	if f.idx < len(f.Results)-1 {
		f.idx++
	}
	if r.Err != nil {
		return model.Reading{}, r.Err
	}
	return model.Reading{Celsius: r.Celsius, Timestamp: time.Now()}, nil
}
