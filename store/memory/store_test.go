package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/transaction"
)

func testTxn(ref string, ts time.Time) (*transaction.Transaction, []*account.LogEntry) {
	txn := &transaction.Transaction{
		ID:        id.NewTransactionID(),
		Reference: ref,
		Postings: []transaction.Posting{
			{Source: "@world", Destination: "users:alice:wallet", Asset: "USD", Amount: 100},
		},
		Metadata:  map[string]string{"type": "deposit"},
		Timestamp: ts,
	}
	entries := []*account.LogEntry{
		{
			ID:            id.NewBalanceLogID(),
			Address:       "@world",
			Asset:         "USD",
			Delta:         -100,
			TransactionID: txn.ID,
			Reference:     ref,
			CreatedAt:     ts,
		},
		{
			ID:            id.NewBalanceLogID(),
			Address:       "users:alice:wallet",
			Asset:         "USD",
			Delta:         100,
			TransactionID: txn.ID,
			Reference:     ref,
			CreatedAt:     ts,
		},
	}
	return txn, entries
}

func TestCommitTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()

	txn, entries := testTxn("dep-1", time.Now().UTC())
	if err := s.CommitTransaction(ctx, "main", txn, entries); err != nil {
		t.Fatalf("commit: %v", err)
	}

	t.Run("implicit account creation", func(t *testing.T) {
		acct, err := s.GetAccount(ctx, "main", "users:alice:wallet")
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		if got := acct.Balances.Get("USD"); got != 100 {
			t.Errorf("balance: got %d, want 100", got)
		}
	})

	t.Run("duplicate reference", func(t *testing.T) {
		dup, dupEntries := testTxn("dep-1", time.Now().UTC())
		err := s.CommitTransaction(ctx, "main", dup, dupEntries)
		if !errors.Is(err, ledger.ErrAlreadyExists) {
			t.Fatalf("got %v, want ErrAlreadyExists", err)
		}
		// The rejected commit must not have moved balances.
		balance, err := s.GetBalance(ctx, "main", "users:alice:wallet", "USD")
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if balance != 100 {
			t.Errorf("balance after rejected commit: got %d, want 100", balance)
		}
	})

	t.Run("ledger isolation", func(t *testing.T) {
		balance, err := s.GetBalance(ctx, "other", "users:alice:wallet", "USD")
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if balance != 0 {
			t.Errorf("other ledger leaked balance %d", balance)
		}
	})
}

func TestListBalanceLog(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, ref := range []string{"dep-1", "dep-2", "dep-3"} {
		txn, entries := testTxn(ref, base.Add(time.Duration(i)*time.Millisecond))
		if err := s.CommitTransaction(ctx, "main", txn, entries); err != nil {
			t.Fatalf("commit %s: %v", ref, err)
		}
	}

	entries, err := s.ListBalanceLog(ctx, "main", "users:alice:wallet", account.LogOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Errorf("entries out of order at %d", i)
		}
	}

	limited, err := s.ListBalanceLog(ctx, "main", "users:alice:wallet", account.LogOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d entries, want 2", len(limited))
	}

	none, err := s.ListBalanceLog(ctx, "main", "users:alice:wallet", account.LogOpts{Asset: "EUR"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("EUR filter returned %d entries", len(none))
	}
}

func TestClose(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	txn, entries := testTxn("dep-1", time.Now().UTC())
	if err := s.CommitTransaction(ctx, "main", txn, entries); !errors.Is(err, ledger.ErrStoreClosed) {
		t.Fatalf("commit after close: got %v, want ErrStoreClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ledger.ErrStoreClosed) {
		t.Fatalf("ping after close: got %v, want ErrStoreClosed", err)
	}
}
