package commands

import (
	"strings"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// CommandLogger returns the logger for command handlers of module.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	return logging.WithFields(logging.CommandsLogger(provider), map[string]any{
		"component":      "command",
		"command_module": name,
	})
}
