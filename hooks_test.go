package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/plugin"
	"github.com/dway/ledger/store/memory"
)

// capturePlugin records every hook invocation for assertions.
type capturePlugin struct {
	committed int
	rejected  int
	reverted  int
	accounts  int
	metadata  int
	lastErr   error
}

var (
	_ plugin.Plugin                 = (*capturePlugin)(nil)
	_ plugin.OnTransactionCommitted = (*capturePlugin)(nil)
	_ plugin.OnCommitRejected       = (*capturePlugin)(nil)
	_ plugin.OnTransactionReverted  = (*capturePlugin)(nil)
	_ plugin.OnAccountCreated       = (*capturePlugin)(nil)
	_ plugin.OnMetadataUpdated      = (*capturePlugin)(nil)
)

func (p *capturePlugin) Name() string { return "capture" }

func (p *capturePlugin) OnTransactionCommitted(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	p.committed++
	return nil
}

func (p *capturePlugin) OnCommitRejected(_ context.Context, _, _ string, reason error) error {
	p.rejected++
	p.lastErr = reason
	return nil
}

func (p *capturePlugin) OnTransactionReverted(_ context.Context, _ string, _, _ interface{}) error {
	p.reverted++
	return nil
}

func (p *capturePlugin) OnAccountCreated(_ context.Context, _ string, _ interface{}) error {
	p.accounts++
	return nil
}

func (p *capturePlugin) OnMetadataUpdated(_ context.Context, _, _, _, _ string) error {
	p.metadata++
	return nil
}

func TestPluginHooks(t *testing.T) {
	capture := &capturePlugin{}
	l := ledger.New(memory.New(), ledger.WithPlugin(capture))
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer l.Stop()

	if _, err := l.CreateAccount(ctx, alice, map[string]string{"owner": "alice"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if capture.accounts != 1 {
		t.Errorf("account hook: got %d, want 1", capture.accounts)
	}

	if err := l.SetAccountMetadata(ctx, alice, "tier", "gold"); err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if capture.metadata != 1 {
		t.Errorf("metadata hook: got %d, want 1", capture.metadata)
	}

	res := deposit(t, l, "dep-1", alice, "USD", 1000)
	if capture.committed != 1 {
		t.Errorf("committed hook: got %d, want 1", capture.committed)
	}

	_, err := l.Apply(ctx, "bad-1", []ledger.Posting{
		{Source: bob, Destination: alice, Asset: "USD", Amount: 500},
	}, map[string]string{"type": "transfer"})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if capture.rejected != 1 {
		t.Errorf("rejected hook: got %d, want 1", capture.rejected)
	}
	if !errors.Is(capture.lastErr, ledger.ErrInsufficientFunds) {
		t.Errorf("rejection reason: got %v", capture.lastErr)
	}

	if _, err := l.Revert(ctx, res.TransactionID); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if capture.reverted != 1 {
		t.Errorf("reverted hook: got %d, want 1", capture.reverted)
	}
	// The compensating commit also fires the committed hook.
	if capture.committed != 2 {
		t.Errorf("committed hook after revert: got %d, want 2", capture.committed)
	}
}

// plugins that fail must never affect the commit outcome.
type failingPlugin struct{}

func (failingPlugin) Name() string { return "failing" }

func (failingPlugin) OnTransactionCommitted(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	return errors.New("hook exploded")
}

var _ plugin.OnTransactionCommitted = failingPlugin{}

func TestPluginFailureDoesNotBlockCommit(t *testing.T) {
	l := ledger.New(memory.New(), ledger.WithPlugin(failingPlugin{}))
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer l.Stop()

	res := deposit(t, l, "dep-1", alice, "USD", 100)

	txn, err := l.GetTransaction(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if txn.Type() != "deposit" {
		t.Errorf("type: got %q", txn.Type())
	}
}
