package mongo

import (
	"fmt"
	"time"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// ==================== Account models ====================

type accountModel struct {
	Ledger    string            `bson:"ledger"`
	Address   string            `bson:"address"`
	Balances  map[string]int64  `bson:"balances"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

func toAccountModel(ledgerName string, a *account.Account) *accountModel {
	return &accountModel{
		Ledger:    ledgerName,
		Address:   a.Address,
		Balances:  a.Balances.Copy(),
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	a := &account.Account{
		Address:  m.Address,
		Balances: pruneZero(m.Balances),
		Metadata: m.Metadata,
	}
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return a
}

// pruneZero drops zero-amount assets left behind by $inc updates.
func pruneZero(raw map[string]int64) types.Balances {
	balances := types.Balances{}
	for asset, amount := range raw {
		if amount != 0 {
			balances[asset] = amount
		}
	}
	return balances
}

// ==================== Transaction models ====================

type postingModel struct {
	Source      string `bson:"source"`
	Destination string `bson:"destination"`
	Asset       string `bson:"asset"`
	Amount      int64  `bson:"amount"`
}

type txnModel struct {
	ID        string            `bson:"_id"`
	Ledger    string            `bson:"ledger"`
	Reference string            `bson:"reference"`
	Postings  []postingModel    `bson:"postings"`
	Addresses []string          `bson:"addresses"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
	Digest    string            `bson:"digest"`
	Timestamp time.Time         `bson:"ts"`
}

func toTxnModel(ledgerName string, t *transaction.Transaction) *txnModel {
	postings := make([]postingModel, len(t.Postings))
	seen := make(map[string]bool, len(t.Postings)*2)
	var addrs []string
	for i, p := range t.Postings {
		postings[i] = postingModel(p)
		for _, addr := range []string{p.Source, p.Destination} {
			if !seen[addr] {
				seen[addr] = true
				addrs = append(addrs, addr)
			}
		}
	}
	return &txnModel{
		ID:        t.ID.String(),
		Ledger:    ledgerName,
		Reference: t.Reference,
		Postings:  postings,
		Addresses: addrs,
		Metadata:  t.Metadata,
		Digest:    t.Digest,
		Timestamp: t.Timestamp,
	}
}

func fromTxnModel(m *txnModel) (*transaction.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: transaction id: %w", err)
	}
	postings := make([]transaction.Posting, len(m.Postings))
	for i, p := range m.Postings {
		postings[i] = transaction.Posting(p)
	}
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &transaction.Transaction{
		ID:        txID,
		Reference: m.Reference,
		Postings:  postings,
		Metadata:  metadata,
		Digest:    m.Digest,
		Timestamp: m.Timestamp,
	}, nil
}

// ==================== Balance log models ====================

type logModel struct {
	ID            string    `bson:"_id"`
	Ledger        string    `bson:"ledger"`
	Address       string    `bson:"address"`
	Asset         string    `bson:"asset"`
	Delta         int64     `bson:"delta"`
	TransactionID string    `bson:"transaction_id"`
	Reference     string    `bson:"reference"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toLogModel(ledgerName string, e *account.LogEntry) *logModel {
	return &logModel{
		ID:            e.ID.String(),
		Ledger:        ledgerName,
		Address:       e.Address,
		Asset:         e.Asset,
		Delta:         e.Delta,
		TransactionID: e.TransactionID.String(),
		Reference:     e.Reference,
		CreatedAt:     e.CreatedAt,
	}
}

func fromLogModel(m *logModel) (*account.LogEntry, error) {
	entryID, err := id.ParseBalanceLogID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: balance log id: %w", err)
	}
	txID, err := id.ParseTransactionID(m.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: transaction id: %w", err)
	}
	return &account.LogEntry{
		ID:            entryID,
		Address:       m.Address,
		Asset:         m.Asset,
		Delta:         m.Delta,
		TransactionID: txID,
		Reference:     m.Reference,
		CreatedAt:     m.CreatedAt,
	}, nil
}
