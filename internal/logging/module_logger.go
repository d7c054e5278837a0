package logging

import (
	"context"
	"strings"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

const (
	rootModule      = "basicmemory"
	syncModule      = "basicmemory.sync"
	watcherModule   = "basicmemory.watcher"
	resolverModule  = "basicmemory.resolver"
	searchModule    = "basicmemory.search"
	knowledgeModule = "basicmemory.knowledge"
)

const (
	fieldFilePath  = "file_path"
	fieldProjectID = "project_id"
	fieldAction    = "sync_action"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
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

	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(map[string]any{
			"module": module,
		})
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// SyncLogger returns the logger namespace reserved for the two-pass
// synchronizer.
func SyncLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncModule)
}

// WatcherLogger returns the logger namespace reserved for the filesystem
// watcher.
func WatcherLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, watcherModule)
}

// ResolverLogger returns the logger namespace reserved for link resolution.
func ResolverLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, resolverModule)
}

// SearchLogger returns the logger namespace reserved for the search index.
func SearchLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, searchModule)
}

// KnowledgeLogger returns the logger namespace reserved for Markdown parsing.
func KnowledgeLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, knowledgeModule)
}

// WithSyncContext enriches the provided logger with the fields every sync
// log line carries: the file path, project id, and the action being taken.
// Empty values are ignored.
func WithSyncContext(logger interfaces.Logger, path, projectID, action string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		fields[fieldFilePath] = trimmed
	}
	if trimmed := strings.TrimSpace(projectID); trimmed != "" {
		fields[fieldProjectID] = trimmed
	}
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		fields[fieldAction] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
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
