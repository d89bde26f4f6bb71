package account

import (
	"context"

	"github.com/dway/ledger/types"
)

// Store is the account-facing slice of the storage contract. The
// unified store interface declares these methods explicitly; this
// interface exists for consumers that only read accounts.
type Store interface {
	GetAccount(ctx context.Context, ledger, addr string) (*Account, error)
	CreateAccount(ctx context.Context, ledger string, acct *Account) error
	SetAccountMetadata(ctx context.Context, ledger, addr, key, value string) error
	GetBalances(ctx context.Context, ledger, addr string) (types.Balances, error)
	GetBalance(ctx context.Context, ledger, addr, asset string) (int64, error)
	ListBalanceLog(ctx context.Context, ledger, addr string, opts LogOpts) ([]*LogEntry, error)
}
