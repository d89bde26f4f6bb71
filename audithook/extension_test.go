package audithook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/transaction"
)

func TestTransactionCommitted(t *testing.T) {
	var got *AuditEvent
	ext := New(RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		got = evt
		return nil
	}))

	txn := &transaction.Transaction{
		ID:        id.NewTransactionID(),
		Reference: "t-1",
		Postings: []transaction.Posting{
			{Source: "users:alice:wallet", Destination: "users:bob:wallet", Asset: "USD", Amount: 100},
		},
		Metadata: map[string]string{"type": "p2p_transfer"},
	}

	if err := ext.OnTransactionCommitted(context.Background(), "main", txn, 5*time.Millisecond); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got == nil {
		t.Fatal("no event recorded")
	}
	if got.Action != ActionTransactionCommitted {
		t.Errorf("action: got %q", got.Action)
	}
	if got.ResourceID != txn.ID.String() {
		t.Errorf("resource id: got %q, want %q", got.ResourceID, txn.ID)
	}
	if got.Metadata["reference"] != "t-1" {
		t.Errorf("reference metadata: got %v", got.Metadata["reference"])
	}
}

func TestAccountCreated(t *testing.T) {
	var got *AuditEvent
	ext := New(RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		got = evt
		return nil
	}))

	acct := account.New("users:alice:wallet", map[string]string{"owner": "alice"})
	if err := ext.OnAccountCreated(context.Background(), "main", acct); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got == nil {
		t.Fatal("no event recorded")
	}
	if got.Action != ActionAccountCreated {
		t.Errorf("action: got %q", got.Action)
	}
	if got.Resource != ResourceAccount {
		t.Errorf("resource: got %q", got.Resource)
	}
	if got.ResourceID != "users:alice:wallet" {
		t.Errorf("resource id: got %q", got.ResourceID)
	}
	if got.Metadata["ledger"] != "main" {
		t.Errorf("ledger metadata: got %v", got.Metadata["ledger"])
	}
}

func TestAccountClosedIsEscalated(t *testing.T) {
	var got *AuditEvent
	ext := New(RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		got = evt
		return nil
	}))

	err := ext.OnMetadataUpdated(context.Background(), "main", "users:alice:wallet", account.MetaClosed, "true")
	if err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got.Action != ActionAccountClosed {
		t.Errorf("action: got %q, want %q", got.Action, ActionAccountClosed)
	}
	if got.Severity != SeverityWarning {
		t.Errorf("severity: got %q", got.Severity)
	}
}

func TestDisabledActions(t *testing.T) {
	calls := 0
	ext := New(RecorderFunc(func(_ context.Context, _ *AuditEvent) error {
		calls++
		return nil
	}), WithEnabledActions(ActionTransactionReverted))

	if err := ext.OnMetadataUpdated(context.Background(), "main", "users:alice:wallet", "tier", "gold"); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if calls != 0 {
		t.Errorf("disabled action recorded %d events", calls)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(_ context.Context, _ *AuditEvent) error {
		return errors.New("backend down")
	}))

	err := ext.OnCommitRejected(context.Background(), "main", "t-1", errors.New("insufficient funds"))
	if err != nil {
		t.Fatalf("recorder failure leaked: %v", err)
	}
}
