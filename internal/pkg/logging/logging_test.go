package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/samirrijal/molbubble/internal/pkg/logging"
)

func TestNew_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn", "json")

	log.Info("hidden")
	log.Warn("message dropped", "subject", "molbubble.watch.inbox")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON, got %v", err)
	}
	if rec["msg"] != "message dropped" || rec["subject"] != "molbubble.watch.inbox" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "debug", "text").Debug("outbox send success")

	if !strings.Contains(buf.String(), "msg=\"outbox send success\"") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}
