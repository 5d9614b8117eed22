package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecretKeys(t *testing.T) {
	got := sanitizeKVs([]interface{}{"slug", "/blog/post", "api_secret", "hunter2", "Authorization", "Bearer x"})
	want := []interface{}{"slug", "/blog/post", "api_secret", "[REDACTED]", "Authorization", "[REDACTED]"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSanitizeKeepsDanglingKey(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("got %v", got)
	}
}

func TestLoggerWritesRedactedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "test").Info("hello", "password", "pw", "total", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["password"] != "[REDACTED]" {
		t.Errorf("password = %v, want [REDACTED]", fields["password"])
	}
	if fields["component"] != "test" {
		t.Errorf("component = %v, want test", fields["component"])
	}
	if fields["total"] != int64(3) {
		t.Errorf("total = %v (%T), want 3", fields["total"], fields["total"])
	}
}
