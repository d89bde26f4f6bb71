package id_test

import (
	"strings"
	"testing"

	"github.com/dway/ledger/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"BalanceLogID", id.NewBalanceLogID, "bal_"},
		{"EventID", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixTransaction)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixTransaction {
		t.Errorf("expected prefix %q, got %q", id.PrefixTransaction, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"BalanceLogID", id.NewBalanceLogID, id.ParseBalanceLogID},
		{"EventID", id.NewEventID, id.ParseEventID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip mismatch: got %q, want %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	txn := id.NewTransactionID()
	if _, err := id.ParseBalanceLogID(txn.String()); err == nil {
		t.Error("expected prefix mismatch error")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"NoSeparator", "txn01h2xcejqtf2nbrexx3vqjhp41"},
		{"BadSuffix", "txn_not-base32!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error parsing %q", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil should report IsNil")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil String should be empty, got %q", id.Nil.String())
	}

	text, err := id.Nil.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if len(text) != 0 {
		t.Errorf("Nil MarshalText should be empty, got %q", text)
	}
}

func TestScanValue(t *testing.T) {
	original := id.NewTransactionID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("scan round trip mismatch: got %q, want %q", scanned.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan nil failed: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("scanning nil should produce the Nil ID")
	}
}
