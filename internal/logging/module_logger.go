package logging

import (
	"context"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

const (
	rootModule       = "sitecontent"
	localStoreModule = "sitecontent.localstore"
	sectionsModule   = "sitecontent.sections"
	fieldsModule     = "sitecontent.fields"
	legacyModule     = "sitecontent.legacy"
	httpModule       = "sitecontent.http"
	commandsModule   = "sitecontent.commands"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// LocalStoreLogger returns the logger namespace for the local storage adapter.
func LocalStoreLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, localStoreModule)
}

// SectionsLogger returns the logger namespace for the unified section store.
func SectionsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, sectionsModule)
}

// FieldsLogger returns the logger namespace for remote field content.
func FieldsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, fieldsModule)
}

// LegacyLogger returns the logger namespace for legacy content migration.
func LegacyLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, legacyModule)
}

// HTTPLogger returns the logger namespace for HTTP handlers.
func HTTPLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, httpModule)
}

// CommandsLogger returns the logger namespace for command handlers.
func CommandsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, commandsModule)
}

// NoOp returns a logger that drops every log entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
