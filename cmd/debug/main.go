package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thatsimonsguy/kettle-controller/db"
	"github.com/thatsimonsguy/kettle-controller/internal/config"
	"github.com/thatsimonsguy/kettle-controller/internal/env"
	"github.com/thatsimonsguy/kettle-controller/internal/pinctrl"
	"github.com/thatsimonsguy/kettle-controller/system/startup"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, configPath, command, eventType string
	var limit, pin int
	flag.StringVar(&dbPath, "db", "data/kettle.db", "Path to the SQLite journal file")
	flag.StringVar(&configPath, "config", "config.json", "Path to controller config file")
	flag.StringVar(&command, "cmd", "", "Command to run: sessions, events, write-boot-script, install-services, pin-state")
	flag.StringVar(&eventType, "type", "", "Event type filter for events, e.g. COMPLETED")
	flag.IntVar(&limit, "limit", 20, "Number of rows to show")
	flag.IntVar(&pin, "pin", -1, "GPIO pin for pin-state")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of kettle-debug:")
		fmt.Println("  -db string\tPath to the SQLite journal file (default 'data/kettle.db')")
		fmt.Println("  -config string\tPath to controller config file (default 'config.json')")
		fmt.Println("  -cmd string\tCommand to run: sessions, events, write-boot-script, install-services, pin-state")
		fmt.Println("  -type string\tEvent type filter for events")
		fmt.Println("  -limit int\tNumber of rows to show (default 20)")
		fmt.Println("  -pin int\tGPIO pin for pin-state")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	var err error
	switch command {
	case "sessions":
		err = db.PrintSessionsCLI(dbPath, limit, os.Stdout)
	case "events":
		err = db.PrintEventsCLI(dbPath, eventType, limit, os.Stdout)
	case "write-boot-script":
		if err = loadConfig(configPath); err == nil {
			err = startup.WriteStartupScript()
		}
	case "install-services":
		if err = loadConfig(configPath); err == nil {
			if err = startup.WriteStartupScript(); err == nil {
				if err = startup.InstallStartupService(); err == nil {
					err = startup.InstallMainService()
				}
			}
		}
	case "pin-state":
		if pin < 0 {
			fmt.Println("Error: -pin is required")
			os.Exit(1)
		}
		var state *pinctrl.PinState
		if state, err = pinctrl.ReadPin(pin); err == nil {
			fmt.Printf("GPIO%d mode=%s pull=%s drive=%s level=%s\n", state.Pin, state.Mode, state.Pull, state.Drive, state.Level)
		}
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func loadConfig(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	env.Cfg = &cfg
	return nil
}
