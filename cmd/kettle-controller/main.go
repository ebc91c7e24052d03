package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/db"
	"github.com/thatsimonsguy/kettle-controller/internal/api"
	"github.com/thatsimonsguy/kettle-controller/internal/config"
	"github.com/thatsimonsguy/kettle-controller/internal/controller"
	"github.com/thatsimonsguy/kettle-controller/internal/datadog"
	"github.com/thatsimonsguy/kettle-controller/internal/device"
	"github.com/thatsimonsguy/kettle-controller/internal/env"
	"github.com/thatsimonsguy/kettle-controller/internal/events"
	"github.com/thatsimonsguy/kettle-controller/internal/feedback"
	"github.com/thatsimonsguy/kettle-controller/internal/gpio"
	"github.com/thatsimonsguy/kettle-controller/internal/input"
	"github.com/thatsimonsguy/kettle-controller/internal/logging"
	"github.com/thatsimonsguy/kettle-controller/internal/mqtt"
	"github.com/thatsimonsguy/kettle-controller/internal/notifications"
	"github.com/thatsimonsguy/kettle-controller/internal/preset"
	"github.com/thatsimonsguy/kettle-controller/internal/queue"
	"github.com/thatsimonsguy/kettle-controller/internal/status"
	"github.com/thatsimonsguy/kettle-controller/internal/temperature"
	"github.com/thatsimonsguy/kettle-controller/system/shutdown"
)

func main() {
	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db_file", cfg.DBFile).
		Str("gpio_driver", cfg.GPIODriver).
		Msg("Starting kettle controller")

	gpio.SetSafeMode(cfg.SafeMode)
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED: GPIO writes are disabled system-wide")
	}
	if cfg.MaxHeatingMinutes == 0 {
		log.Warn().Msg("max_heating_minutes is 0, heating has no duration cutoff")
	}
	if cfg.SensorStaleSeconds == 0 {
		log.Warn().Msg("sensor_stale_seconds is 0, a dead sensor will not stop heating")
	}

	hw, err := openHardware(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Refusing to enable relay board due to unsafe pin states")
	}

	heater := device.New("heater", gpio.NewRelay("heater", hw.heater, pinOf(cfg.GPIO.HeaterRelay)))
	mainPower := device.New("main_power", gpio.NewRelay("main_power", hw.mainPower, pinOf(cfg.GPIO.MainPowerRelay)))
	shutdown.Register(heater.Name, heater)
	shutdown.Register(mainPower.Name, mainPower)
	shutdown.OnShutdown(hw.close)

	datadog.InitMetrics()
	shutdown.OnShutdown(datadog.Close)
	notifications.Init()

	if err := os.MkdirAll(filepath.Dir(cfg.DBFile), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}
	database, err := db.Open(cfg.DBFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open journal database")
	}
	if n, err := db.CloseOpenSessions(database, time.Now(), "restart"); err != nil {
		log.Warn().Err(err).Msg("Failed to close stale heat sessions")
	} else if n > 0 {
		log.Warn().Int64("sessions", n).Msg("Closed heat sessions left open by previous run")
	}
	journal := db.NewJournal(database, 64)

	q := queue.New(cfg.QueueDepth)
	q.OnAccept(journal.ObserveCommand)

	tracker := status.NewTracker(time.Now())
	thermo := temperature.NewService(temperature.NewDS18B20(cfg.SensorPath))
	presenter := feedback.NewPresenter(feedback.LogBuzzer{}, &feedback.LogDisplay{})

	var publisher mqtt.Publisher
	if cfg.MQTTBroker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT unavailable, continuing without it")
		} else {
			publisher = p
		}
	}
	var notifier events.Sink
	if notifications.Enabled() {
		notifier = notifications.Sink{}
	}
	outputs, asyncs := outputSinks(journal, publisher, notifier)
	sinks := append(events.Fanout{presenter, tracker, datadog.EventSink{}}, outputs...)

	sel := preset.NewSelector()
	ctrl := controller.New(q, sel, heater, sinks, controller.Options{
		CompletionMargin:       cfg.CompletionMarginC,
		DisplayRefresh:         cfg.DisplayRefresh(),
		Animation:              cfg.Animation(),
		MaxHeating:             cfg.MaxHeating(),
		SensorStale:            cfg.SensorStale(),
		CompleteOnStaleReading: cfg.CompleteOnStaleReading,
	})
	ctrl.SetStatus(tracker, thermo)
	ctrl.OnRelayFault(func(err error) {
		shutdown.ShutdownWithError(err, "Heater relay fault, shutting down")
	})

	shutdown.OnShutdown(func() {
		for _, a := range asyncs {
			a.Close()
		}
		journal.Close()
		if err := database.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal database")
		}
	})

	loop := controller.NewLoop(controller.LoopConfig{
		ButtonPoll: cfg.ButtonPoll(),
		SensorPoll: cfg.SensorPoll(),
		Tick:       cfg.Tick(),
	}, ctrl, input.NewClassifier(cfg.Debounce(), cfg.LongPress()), sel, q,
		gpio.NewButton(hw.button, pinOf(cfg.GPIO.Button)), thermo, presenter)

	if err := mainPower.Activate(); err != nil {
		shutdown.ShutdownWithError(err, "Failed to enable main power")
	}

	server := api.NewServer(tracker, q, database)
	go func() {
		if err := server.ListenAndServe(cfg.ListenPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdown.ShutdownWithError(err, "API server failed")
		}
	}()

	if publisher != nil {
		if err := publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: mqtt.SystemStartup}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish startup event")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	reason := make(chan string, 1)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutdown requested")
		reason <- sig.String()
		cancel()
	}()

	presenter.PlayStartup(time.Now())
	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	<-loopDone
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown incomplete")
	}

	if publisher != nil {
		why := "shutdown"
		select {
		case why = <-reason:
		default:
		}
		if err := publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: mqtt.SystemShutdown, Reason: why}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish shutdown event")
		}
		publisher.Close()
	}

	shutdown.Shutdown()
}
