package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/kettle-controller/internal/config"
	"github.com/thatsimonsguy/kettle-controller/internal/env"
)

var command = exec.Command

// WriteStartupScript writes the boot script that puts every relay in its
// inactive state and the button in input mode before the controller starts.
func WriteStartupScript() error {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Kettle GPIO pin configuration at boot", "")

	relay := func(label string, pin *config.GPIOPin) {
		drive := "dl"
		if !pin.ActiveHigh {
			drive = "dh"
		}
		lines = append(lines, fmt.Sprintf("# %s", label))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", pin.Pin, drive))
		lines = append(lines, "")
	}

	gpio := env.Cfg.GPIO
	relay("heater_relay", gpio.HeaterRelay)
	relay("main_power_relay", gpio.MainPowerRelay)

	pull := "pu"
	if gpio.Button.ActiveHigh {
		pull = "pd"
	}
	lines = append(lines, "# button", fmt.Sprintf("pinctrl set %d ip %s", gpio.Button.Pin, pull), "")

	contents := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(env.Cfg.BootScriptFilePath, []byte(contents), 0755)
}

func InstallStartupService() error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Configure kettle GPIO pins at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, env.Cfg.BootScriptFilePath)

	return os.WriteFile(env.Cfg.OSServicePath, []byte(unitContents), 0644)
}

func InstallMainService() error {
	gpioUnitName := filepath.Base(env.Cfg.OSServicePath)

	unit := fmt.Sprintf(`[Unit]
Description=Kettle controller main service
After=%s
Requires=%s

[Service]
Type=simple
User=%s
WorkingDirectory=%s
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, env.Cfg.ServiceUser, env.Cfg.ServiceWorkDir, env.Cfg.ServiceExec)

	return os.WriteFile(env.Cfg.MainServicePath, []byte(unit), 0644)
}

func RunStartupScript() error {
	cmd := command("/bin/bash", env.Cfg.BootScriptFilePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run boot script %s: %w", env.Cfg.BootScriptFilePath, err)
	}
	return nil
}
