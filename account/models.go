// Package account defines the ledger account model and its store contract.
package account

import (
	"time"

	"github.com/dway/ledger/id"
	"github.com/dway/ledger/types"
)

// Metadata keys with engine-level meaning. Everything else in account
// metadata is free-form caller data.
const (
	// MetaCreditEnabled marks an account that may hold a negative
	// balance. Value must be the string "true".
	MetaCreditEnabled = "credit_enabled"

	// MetaClosed marks a logically closed account. Closed accounts
	// reject new postings but keep their full history.
	MetaClosed = "closed"
)

// Account holds per-asset balances and free-form metadata for one
// address. Accounts exist implicitly: the first committed posting that
// references an address creates it. An account is never physically
// deleted — closing is a metadata flag.
type Account struct {
	types.Entity
	Address  string            `json:"address"`
	Balances types.Balances    `json:"balances"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New returns an open account with zero balances.
func New(addr string, metadata map[string]string) *Account {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Account{
		Entity:   types.NewEntity(),
		Address:  addr,
		Balances: types.Balances{},
		Metadata: metadata,
	}
}

// CreditEnabled reports whether the account opted into negative
// balances via metadata. Namespace-level credit (treasury, fees,
// liquidity) is decided by the address package, not here.
func (a *Account) CreditEnabled() bool {
	return a.Metadata[MetaCreditEnabled] == "true"
}

// Closed reports whether the account is logically closed.
func (a *Account) Closed() bool {
	return a.Metadata[MetaClosed] == "true"
}

// Copy returns an independent copy of the account.
func (a *Account) Copy() *Account {
	out := &Account{
		Entity:   a.Entity,
		Address:  a.Address,
		Balances: a.Balances.Copy(),
		Metadata: make(map[string]string, len(a.Metadata)),
	}
	for k, v := range a.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// LogEntry is one record of the append-only balance log. Balances are a
// materialized view over these entries: folding every entry for an
// address/asset pair reproduces the current balance.
type LogEntry struct {
	ID            id.BalanceLogID  `json:"id"`
	Address       string           `json:"address"`
	Asset         string           `json:"asset"`
	Delta         int64            `json:"delta"`
	TransactionID id.TransactionID `json:"transaction_id"`
	Reference     string           `json:"reference"`
	CreatedAt     time.Time        `json:"created_at"`
}

// LogOpts filters balance log queries.
type LogOpts struct {
	Asset string // restrict to one asset; empty matches all
	Limit int    // 0 means no limit
}
