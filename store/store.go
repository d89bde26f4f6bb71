// Package store defines the unified storage contract for the ledger
// engine. Drivers live in subpackages: memory, postgres, mongo.
package store

import (
	"context"
	"time"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// Store is the unified storage interface for all Ledger entities.
// Every method is ledger-scoped so one durable backend can serve many
// named ledgers. Instead of embedding the sub-interfaces, we explicitly
// declare all methods to avoid naming conflicts.
//
// CommitTransaction is the only balance mutation in the contract and
// must be atomic: the transaction record, its balance log entries, and
// the balance updates land together or not at all. Nothing else may
// touch balances — that discipline is what keeps the books balanced.
type Store interface {
	// Account methods
	GetAccount(ctx context.Context, ledger, addr string) (*account.Account, error)
	CreateAccount(ctx context.Context, ledger string, acct *account.Account) error
	SetAccountMetadata(ctx context.Context, ledger, addr, key, value string) error
	GetBalances(ctx context.Context, ledger, addr string) (types.Balances, error)
	GetBalance(ctx context.Context, ledger, addr, asset string) (int64, error)

	// Transaction methods
	CommitTransaction(ctx context.Context, ledger string, txn *transaction.Transaction, entries []*account.LogEntry) error
	GetTransaction(ctx context.Context, ledger string, txID id.TransactionID) (*transaction.Transaction, error)
	GetTransactionByReference(ctx context.Context, ledger, reference string) (*transaction.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, ledger, addr string, opts transaction.ListOpts) ([]*transaction.Transaction, error)
	MarkTransactionReverted(ctx context.Context, ledger string, txID, revertID id.TransactionID) error
	LastCommitTime(ctx context.Context, ledger string) (time.Time, error)

	// Balance log methods
	ListBalanceLog(ctx context.Context, ledger, addr string, opts account.LogOpts) ([]*account.LogEntry, error)
	RecomputeBalances(ctx context.Context, ledger, addr string) (types.Balances, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// The unified interface must keep satisfying the entity-facing slices.
var (
	_ account.Store     = (Store)(nil)
	_ transaction.Store = (Store)(nil)
)
