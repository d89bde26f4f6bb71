package transaction

import (
	"context"

	"github.com/dway/ledger/id"
)

// Store is the transaction-facing slice of the storage contract, for
// consumers that only read committed history.
type Store interface {
	GetTransaction(ctx context.Context, ledger string, txID id.TransactionID) (*Transaction, error)
	GetTransactionByReference(ctx context.Context, ledger, reference string) (*Transaction, error)
	ListTransactionsByAccount(ctx context.Context, ledger, addr string, opts ListOpts) ([]*Transaction, error)
}
