package logging

import (
	"context"
	"testing"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

type recordingLogger struct {
	fields   []map[string]any
	contexts []context.Context
}

func (r *recordingLogger) Trace(string, ...any) {}
func (r *recordingLogger) Debug(string, ...any) {}
func (r *recordingLogger) Info(string, ...any)  {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}
func (r *recordingLogger) Fatal(string, ...any) {}

func (r *recordingLogger) WithFields(fields map[string]any) interfaces.Logger {
	if fields == nil {
		fields = map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.fields = append(r.fields, copied)
	return r
}

func (r *recordingLogger) WithContext(ctx context.Context) interfaces.Logger {
	r.contexts = append(r.contexts, ctx)
	return r
}

type stubProvider struct {
	requested []string
	logger    interfaces.Logger
}

func (s *stubProvider) GetLogger(name string) interfaces.Logger {
	s.requested = append(s.requested, name)
	return s.logger
}

func TestModuleLoggerFallsBackToNoOp(t *testing.T) {
	logger := ModuleLogger(nil, "basicmemory.test")
	if _, ok := logger.(noopLogger); !ok {
		t.Fatalf("expected noopLogger fallback, got %T", logger)
	}
	ctx := context.Background()
	logger = logger.WithContext(ctx)
	logger = WithFields(logger, map[string]any{"foo": "bar"})
	logger.Debug("noop")
}

func TestModuleLoggerUsesProviderAndAnnotatesFields(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	logger := ModuleLogger(provider, syncModule)

	if len(provider.requested) != 1 || provider.requested[0] != syncModule {
		t.Fatalf("expected module %s, got %v", syncModule, provider.requested)
	}

	if len(rec.fields) != 1 {
		t.Fatalf("expected module fields to be applied once, got %d", len(rec.fields))
	}

	if got, ok := rec.fields[0]["module"]; !ok || got != syncModule {
		t.Fatalf("expected module field %s, got %v", syncModule, rec.fields[0]["module"])
	}

	logger.Info("with provider")
}

func TestModuleLoggerDefaultsToRootModule(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	_ = ModuleLogger(provider, "")

	if len(provider.requested) != 1 || provider.requested[0] != rootModule {
		t.Fatalf("expected default module %s, got %v", rootModule, provider.requested)
	}
	if rec.fields[0]["module"] != rootModule {
		t.Fatalf("expected module field %s, got %v", rootModule, rec.fields[0]["module"])
	}
}

func TestSearchLoggerRequestsSearchModule(t *testing.T) {
	provider := &stubProvider{logger: &recordingLogger{}}
	_ = SearchLogger(provider)
	if len(provider.requested) == 0 || provider.requested[0] != searchModule {
		t.Fatalf("expected search module request, got %v", provider.requested)
	}
}

func TestWatcherLoggerRequestsWatcherModule(t *testing.T) {
	provider := &stubProvider{logger: &recordingLogger{}}
	_ = WatcherLogger(provider)
	if len(provider.requested) == 0 || provider.requested[0] != watcherModule {
		t.Fatalf("expected watcher module request, got %v", provider.requested)
	}
}

func TestWithSyncContextAttachesFields(t *testing.T) {
	rec := &recordingLogger{}
	_ = WithSyncContext(rec, "notes/a.md", "proj-1", "modified")
	if len(rec.fields) != 1 {
		t.Fatalf("expected one WithFields call, got %d", len(rec.fields))
	}
	fields := rec.fields[0]
	if fields[fieldFilePath] != "notes/a.md" || fields[fieldProjectID] != "proj-1" || fields[fieldAction] != "modified" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
