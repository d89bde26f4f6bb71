package ledger

import (
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// Re-export common types for convenience so users don't have to import
// the entity packages for everyday calls.

// Posting is re-exported from the transaction package.
type Posting = transaction.Posting

// Transaction is re-exported from the transaction package.
type Transaction = transaction.Transaction

// Balances is re-exported from the types package.
type Balances = types.Balances

// Volume is re-exported from the types package.
type Volume = types.Volume

// Entity is re-exported from the types package.
type Entity = types.Entity

// ID is the primary identifier type for all Ledger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Re-export Volume constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	GBP        = types.GBP
	BTC        = types.BTC
	ZeroVolume = types.ZeroVolume
)

// NewPosting is re-exported from the transaction package.
var NewPosting = transaction.NewPosting

// Re-export Entity constructor
var NewEntity = types.NewEntity
