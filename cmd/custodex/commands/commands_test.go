package commands

import (
	"math/big"
	"strings"
	"testing"
	"time"
)

func TestNewCreateCmd(t *testing.T) {
	cmd := NewCreateCmd()

	if cmd == nil {
		t.Fatal("NewCreateCmd returned nil")
	}
	if cmd.Use != "create" {
		t.Errorf("Use mismatch: got %s, want create", cmd.Use)
	}

	for _, flag := range []string{"type", "receiver", "arbiter", "amount", "bond", "lock", "terms", "deadline"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("--%s flag should exist", flag)
		}
	}
}

func TestNewInboxCmd(t *testing.T) {
	cmd := NewInboxCmd()

	if cmd == nil {
		t.Fatal("NewInboxCmd returned nil")
	}
	if cmd.Use != "inbox" {
		t.Errorf("Use mismatch: got %s, want inbox", cmd.Use)
	}
	if cmd.Flags().Lookup("all") == nil {
		t.Error("--all flag should exist")
	}
}

func TestNewAcceptCmd(t *testing.T) {
	cmd := NewAcceptCmd()

	if cmd == nil {
		t.Fatal("NewAcceptCmd returned nil")
	}
	if cmd.Use != "accept [payment-id]" {
		t.Errorf("Use mismatch: got %s, want accept [payment-id]", cmd.Use)
	}
}

func TestNewWalletCmd(t *testing.T) {
	cmd := NewWalletCmd()

	if cmd == nil {
		t.Fatal("NewWalletCmd returned nil")
	}

	subs := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subs[strings.Fields(sub.Use)[0]] = true
	}
	for _, want := range []string{"create", "import", "address", "password"} {
		if !subs[want] {
			t.Errorf("wallet should have %s subcommand", want)
		}
	}
}

func TestParsePaymentType(t *testing.T) {
	if _, err := parsePaymentType("timelocked"); err != nil {
		t.Errorf("timelocked should parse: %v", err)
	}
	if _, err := parsePaymentType("Bonded"); err != nil {
		t.Errorf("case-insensitive parse failed: %v", err)
	}
	if _, err := parsePaymentType("simple"); err == nil {
		t.Error("simple payments are not creatable from the CLI")
	}
}

func TestFormatUSDC(t *testing.T) {
	got := FormatUSDC(big.NewInt(12_500_000))
	if got != "12.5 USDC" {
		t.Errorf("FormatUSDC mismatch: got %s", got)
	}
}

func TestFormatAddress(t *testing.T) {
	long := "0x1234567890abcdef1234567890abcdef12345678"
	got := FormatAddress(long)
	if len(got) >= len(long) {
		t.Errorf("long address should be truncated, got %s", got)
	}
	if !strings.HasPrefix(got, "0x1234") {
		t.Errorf("truncation should keep the prefix, got %s", got)
	}
}

func TestFormatDeadline(t *testing.T) {
	if got := FormatDeadline(time.Time{}); got != "none" {
		t.Errorf("zero deadline should read none, got %s", got)
	}
	future := FormatDeadline(time.Now().Add(2 * time.Hour))
	if !strings.Contains(future, "(in ") {
		t.Errorf("future deadline should show time remaining, got %s", future)
	}
	past := FormatDeadline(time.Now().Add(-2 * time.Hour))
	if !strings.Contains(past, "passed") {
		t.Errorf("past deadline should read passed, got %s", past)
	}
}
