package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAnonymizeSession(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "uuid key", key: "bb2e3a80-8d8c-4f2e-8f8d-7a2f0f3f9b11"},
		{name: "short key", key: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeSession(tt.key)
			if !strings.HasPrefix(got, "session:") {
				t.Errorf("AnonymizeSession(%q) = %q, want session: prefix", tt.key, got)
			}
			if strings.Contains(got, tt.key) {
				t.Errorf("AnonymizeSession(%q) leaked the key", tt.key)
			}
			// Stable: same input, same hash
			if got != AnonymizeSession(tt.key) {
				t.Errorf("AnonymizeSession(%q) is not deterministic", tt.key)
			}
		})
	}

	if AnonymizeSession("") != "" {
		t.Error("AnonymizeSession(\"\") should be empty")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q", got)
	}
	if got := SanitizeToken("ya29.secret"); got != "[token:11 chars]" {
		t.Errorf("SanitizeToken() = %q", got)
	}
}

func TestErrNilIsOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("op done", Err(nil))
	if strings.Contains(buf.String(), KeyError) {
		t.Errorf("nil error should not emit an error attribute, got %q", buf.String())
	}
}

func TestAttributeHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	WithTool(WithOperation(logger, "assistant.chat"), "search_emails").
		Info("tool executed", Status(StatusSuccess))

	out := buf.String()
	for _, want := range []string{"operation=assistant.chat", "tool=search_emails", "status=success"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
