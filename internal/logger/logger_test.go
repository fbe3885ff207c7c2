package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestSetup_IncludesTimeAndLevelFields(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("should be dropped")

	if buf.Len() != 0 {
		t.Errorf("expected no output below WARN, got %s", buf.String())
	}
}

// TestSetup_RedactsSensitiveAttributes はパスワードやトークンがログに出力されないことを検証する。
func TestSetup_RedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("login attempt",
		slog.String("email", "a@example.com"),
		slog.String("password", "secret1"),
		slog.String("token", "eyJhbGciOi..."),
		slog.String("Authorization", "Bearer abc"),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["email"] != "a@example.com" {
		t.Errorf("email = %v, want %q", entry["email"], "a@example.com")
	}
	for _, key := range []string{"password", "token", "Authorization"} {
		if entry[key] != redactedValue {
			t.Errorf("%s = %v, want %q", key, entry[key], redactedValue)
		}
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	SetLevel(slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestSetLevel_ChangesGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	SetLevel(slog.LevelError)
	defer SetLevel(slog.LevelInfo)

	slog.Default().Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output below ERROR, got %s", buf.String())
	}

	slog.Default().Error("kept")
	if buf.Len() == 0 {
		t.Error("expected ERROR record to be written")
	}
}
