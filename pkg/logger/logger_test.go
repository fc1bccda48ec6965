package logger

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSafeHeadersRedactsCredentials(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/posts", nil)
	r.Header.Set("Authorization", "Bearer supersecret")
	r.Header.Set("X-API-Key", "topsecret")
	r.Header.Set("X-User-ID", "u1")

	out := SafeHeaders(r)
	if strings.Contains(out, "supersecret") || strings.Contains(out, "topsecret") {
		t.Fatalf("credentials leaked: %q", out)
	}
	if !strings.Contains(out, "Authorization=<redacted>") || !strings.Contains(out, "X-Api-Key=<redacted>") {
		t.Fatalf("sensitive headers not redacted: %q", out)
	}
	if !strings.Contains(out, "X-User-Id=u1") {
		t.Fatalf("benign header missing: %q", out)
	}
}

func TestHelpersTolerateUninitializedLogger(t *testing.T) {
	saved := Log
	Log = nil
	defer func() { Log = saved }()

	// Must not panic.
	Debug("event")
	Info("event", "k", "v")
	Warn("event")
	Error("event", "k", "v")
}
