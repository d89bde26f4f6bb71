// Package memory provides an in-memory store driver, used for tests
// and as the reference implementation of the storage contract.
package memory

import (
	"context"
	"sync"
	"time"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/store"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// ledgerData holds one named ledger's state.
type ledgerData struct {
	accounts   map[string]*account.Account
	txns       map[string]*transaction.Transaction
	byRef      map[string]string // reference -> transaction id
	log        []*account.LogEntry
	order      []*transaction.Transaction // commit order
	lastCommit time.Time
}

func newLedgerData() *ledgerData {
	return &ledgerData{
		accounts: make(map[string]*account.Account),
		txns:     make(map[string]*transaction.Transaction),
		byRef:    make(map[string]string),
	}
}

// Store implements store.Store with maps guarded by a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]*ledgerData
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{ledgers: make(map[string]*ledgerData)}
}

// data returns the named ledger's state, creating it on first use.
// Callers must hold the write lock.
func (s *Store) data(name string) *ledgerData {
	d, ok := s.ledgers[name]
	if !ok {
		d = newLedgerData()
		s.ledgers[name] = d
	}
	return d
}

// readData returns the named ledger's state or nil. Callers must hold
// at least the read lock.
func (s *Store) readData(name string) *ledgerData {
	return s.ledgers[name]
}

// ==================== Account methods ====================

func (s *Store) GetAccount(_ context.Context, ledgerName, addr string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.readData(ledgerName); d != nil {
		if acct, ok := d.accounts[addr]; ok {
			return acct.Copy(), nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

func (s *Store) CreateAccount(_ context.Context, ledgerName string, acct *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data(ledgerName)
	if _, exists := d.accounts[acct.Address]; exists {
		return ledger.ErrAlreadyExists
	}
	d.accounts[acct.Address] = acct.Copy()
	return nil
}

func (s *Store) SetAccountMetadata(_ context.Context, ledgerName, addr, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data(ledgerName)
	acct, ok := d.accounts[addr]
	if !ok {
		acct = account.New(addr, nil)
		d.accounts[addr] = acct
	}
	acct.Metadata[key] = value
	acct.Touch()
	return nil
}

func (s *Store) GetBalances(_ context.Context, ledgerName, addr string) (types.Balances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.readData(ledgerName); d != nil {
		if acct, ok := d.accounts[addr]; ok {
			return acct.Balances.Copy(), nil
		}
	}
	return types.Balances{}, nil
}

func (s *Store) GetBalance(ctx context.Context, ledgerName, addr, asset string) (int64, error) {
	balances, err := s.GetBalances(ctx, ledgerName, addr)
	if err != nil {
		return 0, err
	}
	return balances.Get(asset), nil
}

// ==================== Transaction methods ====================

func (s *Store) CommitTransaction(_ context.Context, ledgerName string, txn *transaction.Transaction, entries []*account.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}

	d := s.data(ledgerName)
	if _, exists := d.byRef[txn.Reference]; exists {
		return ledger.ErrAlreadyExists
	}

	stored := txn.Copy()
	d.txns[stored.ID.String()] = stored
	d.byRef[stored.Reference] = stored.ID.String()
	d.order = append(d.order, stored)

	for _, e := range entries {
		acct, ok := d.accounts[e.Address]
		if !ok {
			acct = account.New(e.Address, nil)
			d.accounts[e.Address] = acct
		}
		acct.Balances.Apply(e.Asset, e.Delta)
		acct.Touch()

		copied := *e
		d.log = append(d.log, &copied)
	}

	if stored.Timestamp.After(d.lastCommit) {
		d.lastCommit = stored.Timestamp
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, ledgerName string, txID id.TransactionID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.readData(ledgerName); d != nil {
		if txn, ok := d.txns[txID.String()]; ok {
			return txn.Copy(), nil
		}
	}
	return nil, ledger.ErrTransactionNotFound
}

func (s *Store) GetTransactionByReference(_ context.Context, ledgerName, reference string) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.readData(ledgerName); d != nil {
		if txID, ok := d.byRef[reference]; ok {
			return d.txns[txID].Copy(), nil
		}
	}
	return nil, ledger.ErrTransactionNotFound
}

func (s *Store) ListTransactionsByAccount(_ context.Context, ledgerName, addr string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.readData(ledgerName)
	if d == nil {
		return nil, nil
	}

	var out []*transaction.Transaction
	for _, txn := range d.order {
		if !txn.Touches(addr) {
			continue
		}
		if !opts.Since.IsZero() && txn.Timestamp.Before(opts.Since) {
			continue
		}
		if !opts.AfterTime.IsZero() && !afterCursor(txn, opts.AfterTime, opts.AfterID) {
			continue
		}
		out = append(out, txn.Copy())
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// afterCursor reports whether txn sorts strictly after the cursor
// position in (timestamp, id) order.
func afterCursor(txn *transaction.Transaction, ts time.Time, txID string) bool {
	if txn.Timestamp.After(ts) {
		return true
	}
	return txn.Timestamp.Equal(ts) && txn.ID.String() > txID
}

func (s *Store) MarkTransactionReverted(_ context.Context, ledgerName string, txID, revertID id.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.readData(ledgerName)
	if d == nil {
		return ledger.ErrTransactionNotFound
	}
	txn, ok := d.txns[txID.String()]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	txn.Metadata[transaction.MetaRevertedBy] = revertID.String()
	return nil
}

func (s *Store) LastCommitTime(_ context.Context, ledgerName string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.readData(ledgerName); d != nil {
		return d.lastCommit, nil
	}
	return time.Time{}, nil
}

// ==================== Balance log methods ====================

func (s *Store) ListBalanceLog(_ context.Context, ledgerName, addr string, opts account.LogOpts) ([]*account.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.readData(ledgerName)
	if d == nil {
		return nil, nil
	}

	var out []*account.LogEntry
	for _, e := range d.log {
		if e.Address != addr {
			continue
		}
		if opts.Asset != "" && e.Asset != opts.Asset {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) RecomputeBalances(ctx context.Context, ledgerName, addr string) (types.Balances, error) {
	entries, err := s.ListBalanceLog(ctx, ledgerName, addr, account.LogOpts{})
	if err != nil {
		return nil, err
	}

	balances := types.Balances{}
	for _, e := range entries {
		balances.Apply(e.Asset, e.Delta)
	}
	return balances, nil
}

// ==================== Core methods ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
