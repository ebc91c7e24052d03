package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type GPIOPin struct {
	Pin        int  `json:"pin"`
	ActiveHigh bool `json:"active_high"`
}

type GPIO struct {
	Button         *GPIOPin `json:"button"`
	HeaterRelay    *GPIOPin `json:"heater_relay"`
	MainPowerRelay *GPIOPin `json:"main_power_relay"`
}

const (
	DriverGPIOCdev = "gpiocdev"
	DriverPinctrl  = "pinctrl"
)

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level
	SafeMode   bool `json:"safe_mode"`

	DBFile  string `json:"db_file"`
	LogFile string `json:"log_file"`

	ListenPort int `json:"listen_port"`

	// input
	ButtonPollMS int `json:"button_poll_ms"`
	DebounceMS   int `json:"debounce_ms"`
	LongPressMS  int `json:"long_press_ms"`

	// control
	TickMS            int     `json:"tick_ms"`
	QueueDepth        int     `json:"queue_depth"`
	CompletionMarginC float64 `json:"completion_margin_c"`
	DisplayRefreshMS  int     `json:"display_refresh_ms"`
	AnimationMS       int     `json:"animation_ms"`

	// let a reading older than the heating start complete the cycle
	CompleteOnStaleReading bool `json:"complete_on_stale_reading"`

	// sensor
	SensorPath   string `json:"sensor_path"`
	SensorPollMS int    `json:"sensor_poll_ms"`

	// failsafe, 0 disables
	MaxHeatingMinutes  int `json:"max_heating_minutes"`
	SensorStaleSeconds int `json:"sensor_stale_seconds"`

	// outputs
	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyServer string `json:"ntfy_server"`
	NtfyTopic  string `json:"ntfy_topic"`

	MQTTBroker      string `json:"mqtt_broker"`
	MQTTClientID    string `json:"mqtt_client_id"`
	MQTTTopicPrefix string `json:"mqtt_topic_prefix"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`
	MainServicePath    string `json:"main_service_path"`
	ServiceUser        string `json:"service_user"`
	ServiceWorkDir     string `json:"service_work_dir"`
	ServiceExec        string `json:"service_exec"`

	GPIODriver string `json:"gpio_driver"`
	GPIOChip   string `json:"gpio_chip"`
	GPIO       GPIO   `json:"gpio"`
}

func Load() Config {
	var cfg Config
	var logLevel, dbFile string
	var safeMode bool

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&dbFile, "db-file", "", "Path to the journal database (overrides db_file)")
	flag.BoolVar(&safeMode, "safe-mode", false, "Disable all GPIO writes")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := decode(file, &cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	if dbFile != "" {
		cfg.DBFile = dbFile
	}
	if safeMode {
		cfg.SafeMode = true
	}

	cfg.setDefaults()
	cfg.validate()
	return cfg
}

// LoadFile reads a config file without touching the command line, for tools
// that share the controller's config. It panics on an invalid config like Load.
func LoadFile(path string) (Config, error) {
	cfg := Config{ConfigFile: path, LogLevel: zerolog.InfoLevel}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := decode(file, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	cfg.validate()
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) setDefaults() {
	if cfg.DBFile == "" {
		cfg.DBFile = "data/kettle.db"
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 80
	}
	if cfg.ButtonPollMS == 0 {
		cfg.ButtonPollMS = 10
	}
	if cfg.DebounceMS == 0 {
		cfg.DebounceMS = 50
	}
	if cfg.LongPressMS == 0 {
		cfg.LongPressMS = 1000
	}
	if cfg.TickMS == 0 {
		cfg.TickMS = 50
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 4
	}
	if cfg.DisplayRefreshMS == 0 {
		cfg.DisplayRefreshMS = 200
	}
	if cfg.AnimationMS == 0 {
		cfg.AnimationMS = 300
	}
	if cfg.SensorPollMS == 0 {
		cfg.SensorPollMS = 500
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "kettle."
	}
	if cfg.DDAgentAddr == "" {
		cfg.DDAgentAddr = "127.0.0.1:8125"
	}
	if cfg.NtfyServer == "" {
		cfg.NtfyServer = "https://ntfy.sh"
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "kettle-controller"
	}
	if cfg.MQTTTopicPrefix == "" {
		cfg.MQTTTopicPrefix = "kettle"
	}
	if cfg.GPIODriver == "" {
		cfg.GPIODriver = DriverGPIOCdev
	}
	if cfg.GPIOChip == "" {
		cfg.GPIOChip = "gpiochip0"
	}
	if cfg.BootScriptFilePath == "" {
		cfg.BootScriptFilePath = "/usr/local/bin/kettle-gpio-init.sh"
	}
	if cfg.OSServicePath == "" {
		cfg.OSServicePath = "/etc/systemd/system/kettle-gpio-init.service"
	}
	if cfg.MainServicePath == "" {
		cfg.MainServicePath = "/etc/systemd/system/kettle-controller.service"
	}
	if cfg.ServiceUser == "" {
		cfg.ServiceUser = "pi"
	}
	if cfg.ServiceWorkDir == "" {
		cfg.ServiceWorkDir = "/home/pi/kettle-controller"
	}
	if cfg.ServiceExec == "" {
		cfg.ServiceExec = "/usr/local/bin/kettle-controller -config-file " + cfg.ServiceWorkDir + "/config.json"
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int]string{}
		conflicts     []string
		invalid       []string
	)

	v := reflect.ValueOf(cfg.GPIO)
	t := reflect.TypeOf(cfg.GPIO)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldName := t.Field(i).Tag.Get("json")

		if field.IsNil() {
			missingFields = append(missingFields, "gpio."+fieldName)
			continue
		}

		pin := field.Elem().FieldByName("Pin").Int()
		if other, exists := usedPins[int(pin)]; exists {
			conflicts = append(conflicts, fmt.Sprintf("gpio.%s and gpio.%s both use pin %d", fieldName, other, pin))
		} else {
			usedPins[int(pin)] = fieldName
		}
	}

	if cfg.SensorPath == "" {
		missingFields = append(missingFields, "sensor_path")
	}

	if cfg.GPIODriver != DriverGPIOCdev && cfg.GPIODriver != DriverPinctrl {
		invalid = append(invalid, fmt.Sprintf("gpio_driver %q (want %s or %s)", cfg.GPIODriver, DriverGPIOCdev, DriverPinctrl))
	}
	if cfg.LongPressMS <= cfg.DebounceMS {
		invalid = append(invalid, fmt.Sprintf("long_press_ms %d must exceed debounce_ms %d", cfg.LongPressMS, cfg.DebounceMS))
	}
	if cfg.ButtonPollMS > cfg.DebounceMS {
		invalid = append(invalid, fmt.Sprintf("button_poll_ms %d must not exceed debounce_ms %d", cfg.ButtonPollMS, cfg.DebounceMS))
	}
	if cfg.TickMS >= cfg.LongPressMS {
		invalid = append(invalid, fmt.Sprintf("tick_ms %d must be shorter than long_press_ms %d", cfg.TickMS, cfg.LongPressMS))
	}
	if cfg.CompletionMarginC < 0 || cfg.CompletionMarginC > 10 {
		invalid = append(invalid, fmt.Sprintf("completion_margin_c %.1f out of range 0..10", cfg.CompletionMarginC))
	}
	if cfg.MaxHeatingMinutes < 0 {
		invalid = append(invalid, "max_heating_minutes must not be negative")
	}
	if cfg.SensorStaleSeconds < 0 {
		invalid = append(invalid, "sensor_stale_seconds must not be negative")
	}
	if cfg.SensorStaleSeconds > 0 && time.Duration(cfg.SensorStaleSeconds)*time.Second <= cfg.SensorPoll() {
		invalid = append(invalid, fmt.Sprintf("sensor_stale_seconds %d must exceed sensor_poll_ms %d", cfg.SensorStaleSeconds, cfg.SensorPollMS))
	}
	for name, val := range map[string]int{
		"button_poll_ms": cfg.ButtonPollMS, "debounce_ms": cfg.DebounceMS, "tick_ms": cfg.TickMS,
		"queue_depth": cfg.QueueDepth, "display_refresh_ms": cfg.DisplayRefreshMS,
		"animation_ms": cfg.AnimationMS, "sensor_poll_ms": cfg.SensorPollMS,
	} {
		if val < 0 {
			invalid = append(invalid, name+" must not be negative")
		}
	}

	if len(missingFields) > 0 {
		panic("Missing required config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
	if len(invalid) > 0 {
		panic("Invalid config: " + strings.Join(invalid, "; "))
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (cfg *Config) ButtonPoll() time.Duration     { return ms(cfg.ButtonPollMS) }
func (cfg *Config) Debounce() time.Duration       { return ms(cfg.DebounceMS) }
func (cfg *Config) LongPress() time.Duration      { return ms(cfg.LongPressMS) }
func (cfg *Config) Tick() time.Duration           { return ms(cfg.TickMS) }
func (cfg *Config) DisplayRefresh() time.Duration { return ms(cfg.DisplayRefreshMS) }
func (cfg *Config) Animation() time.Duration      { return ms(cfg.AnimationMS) }
func (cfg *Config) SensorPoll() time.Duration     { return ms(cfg.SensorPollMS) }

// MaxHeating is zero when the duration cutoff is disabled.
func (cfg *Config) MaxHeating() time.Duration {
	return time.Duration(cfg.MaxHeatingMinutes) * time.Minute
}

// SensorStale is zero when the stale-sensor cutoff is disabled.
func (cfg *Config) SensorStale() time.Duration {
	return time.Duration(cfg.SensorStaleSeconds) * time.Second
}
