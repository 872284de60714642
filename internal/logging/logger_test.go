package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSetOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("payment submitted", "payment_id", "42")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "payment submitted" {
		t.Errorf("msg = %v, want 'payment submitted'", entry["msg"])
	}
	if entry["payment_id"] != "42" {
		t.Errorf("payment_id = %v, want 42", entry["payment_id"])
	}
}

func TestSetTextOutput(t *testing.T) {
	var buf bytes.Buffer
	SetTextOutput(&buf)
	defer SetOutput(os.Stdout)

	Debug("polling receipt", "attempt", 3)

	if !strings.Contains(buf.String(), "polling receipt") {
		t.Errorf("text output missing message: %q", buf.String())
	}
}

func TestFieldHelpers(t *testing.T) {
	if got := TxHash("0xabc").Value.String(); got != "0xabc" {
		t.Errorf("TxHash value = %q", got)
	}
	if got := PaymentID("7").Key; got != "payment_id" {
		t.Errorf("PaymentID key = %q", got)
	}
	if got := Err(nil).Value.String(); got != "" {
		t.Errorf("Err(nil) value = %q", got)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	l := With(slog.String("component", "poller"))
	l.Info("started")

	if !strings.Contains(buf.String(), "poller") {
		t.Errorf("With attrs missing from output: %q", buf.String())
	}
}
