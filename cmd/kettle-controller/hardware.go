package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/config"
	"github.com/thatsimonsguy/kettle-controller/internal/gpio"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

type hardware struct {
	button    gpio.Line
	heater    gpio.Line
	mainPower gpio.Line
	close     func()
}

func pinOf(p *config.GPIOPin) model.GPIOPin {
	return model.GPIOPin{Number: p.Pin, ActiveHigh: p.ActiveHigh}
}

// relayPins are the outputs that must be inactive when the controller starts.
func relayPins(cfg *config.Config) map[string]model.GPIOPin {
	return map[string]model.GPIOPin{
		"heater_relay":     pinOf(cfg.GPIO.HeaterRelay),
		"main_power_relay": pinOf(cfg.GPIO.MainPowerRelay),
	}
}

// openHardware validates the relay pins and then requests the lines through
// the configured driver. Validation runs first because requesting an output
// drives it.
func openHardware(cfg *config.Config) (*hardware, error) {
	switch cfg.GPIODriver {
	case config.DriverPinctrl:
		return openPinctrl(cfg)
	default:
		return openCdev(cfg)
	}
}

func openCdev(cfg *config.Config) (*hardware, error) {
	chip, err := gpio.OpenChip(cfg.GPIOChip)
	if err != nil {
		return nil, err
	}

	if err := gpio.ValidateStartupPins(relayPins(cfg), chip.Level); err != nil {
		chip.Close()
		return nil, err
	}

	g := cfg.GPIO
	button, err := chip.Input(g.Button.Pin, g.Button.ActiveHigh)
	if err != nil {
		chip.Close()
		return nil, err
	}
	heater, err := chip.Output(g.HeaterRelay.Pin, g.HeaterRelay.ActiveHigh)
	if err != nil {
		button.Close()
		chip.Close()
		return nil, err
	}
	mainPower, err := chip.Output(g.MainPowerRelay.Pin, g.MainPowerRelay.ActiveHigh)
	if err != nil {
		heater.Close()
		button.Close()
		chip.Close()
		return nil, err
	}

	log.Info().Str("chip", cfg.GPIOChip).Msg("GPIO lines requested via gpiocdev")
	return &hardware{
		button:    button,
		heater:    heater,
		mainPower: mainPower,
		close: func() {
			button.Close()
			heater.Close()
			mainPower.Close()
			chip.Close()
		},
	}, nil
}

func openPinctrl(cfg *config.Config) (*hardware, error) {
	if err := gpio.ValidateStartupPins(relayPins(cfg), gpio.PinctrlLevel); err != nil {
		return nil, err
	}

	g := cfg.GPIO
	button, err := gpio.OpenPinctrlInput(g.Button.Pin, g.Button.ActiveHigh)
	if err != nil {
		return nil, err
	}

	var heater, mainPower gpio.Line
	if gpio.SafeMode() {
		// leave the outputs as the boot script configured them
		heater = &gpio.PinctrlLine{}
		mainPower = &gpio.PinctrlLine{}
	} else {
		if heater, err = gpio.OpenPinctrlOutput(g.HeaterRelay.Pin, g.HeaterRelay.ActiveHigh); err != nil {
			return nil, err
		}
		if mainPower, err = gpio.OpenPinctrlOutput(g.MainPowerRelay.Pin, g.MainPowerRelay.ActiveHigh); err != nil {
			return nil, fmt.Errorf("main power: %w", err)
		}
	}

	log.Info().Msg("GPIO lines configured via pinctrl")
	return &hardware{button: button, heater: heater, mainPower: mainPower, close: func() {}}, nil
}
