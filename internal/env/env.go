package env

import (
	"github.com/thatsimonsguy/kettle-controller/internal/config"
)

var Cfg *config.Config
