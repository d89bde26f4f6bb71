// Package postgres provides a PostgreSQL store driver backed by sqlx.
//
// All tables are ledger-scoped so one database serves many named
// ledgers. CommitTransaction runs the transaction record, the balance
// log entries, and the balance upserts in a single database
// transaction; the unique (ledger, reference) index is the durable
// idempotency guard across processes.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/store"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// pqUniqueViolation is the Postgres error code for a unique constraint hit.
const pqUniqueViolation = "23505"

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return New(db), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	ledger     TEXT        NOT NULL,
	address    TEXT        NOT NULL,
	metadata   JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ledger, address)
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	ledger    TEXT        NOT NULL,
	id        TEXT        NOT NULL,
	reference TEXT        NOT NULL,
	postings  JSONB       NOT NULL,
	metadata  JSONB       NOT NULL DEFAULT '{}'::jsonb,
	digest    TEXT        NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ledger, id),
	UNIQUE (ledger, reference)
);

CREATE INDEX IF NOT EXISTS idx_ledger_transactions_ts
	ON ledger_transactions (ledger, ts, id);

CREATE TABLE IF NOT EXISTS ledger_balances (
	ledger  TEXT   NOT NULL,
	address TEXT   NOT NULL,
	asset   TEXT   NOT NULL,
	amount  BIGINT NOT NULL,
	PRIMARY KEY (ledger, address, asset)
);

CREATE TABLE IF NOT EXISTS ledger_balance_log (
	ledger         TEXT        NOT NULL,
	id             TEXT        NOT NULL,
	address        TEXT        NOT NULL,
	asset          TEXT        NOT NULL,
	delta          BIGINT      NOT NULL,
	transaction_id TEXT        NOT NULL,
	reference      TEXT        NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ledger, id)
);

CREATE INDEX IF NOT EXISTS idx_ledger_balance_log_addr
	ON ledger_balance_log (ledger, address, created_at, id);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Row types ====================

type accountRow struct {
	Address   string    `db:"address"`
	Metadata  []byte    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type txnRow struct {
	ID        string    `db:"id"`
	Reference string    `db:"reference"`
	Postings  []byte    `db:"postings"`
	Metadata  []byte    `db:"metadata"`
	Digest    string    `db:"digest"`
	Timestamp time.Time `db:"ts"`
}

type logRow struct {
	ID            string    `db:"id"`
	Address       string    `db:"address"`
	Asset         string    `db:"asset"`
	Delta         int64     `db:"delta"`
	TransactionID string    `db:"transaction_id"`
	Reference     string    `db:"reference"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *txnRow) toModel() (*transaction.Transaction, error) {
	txID, err := id.ParseTransactionID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: transaction id: %w", err)
	}
	txn := &transaction.Transaction{
		ID:        txID,
		Reference: r.Reference,
		Digest:    r.Digest,
		Timestamp: r.Timestamp,
	}
	if err := json.Unmarshal(r.Postings, &txn.Postings); err != nil {
		return nil, fmt.Errorf("postgres: decode postings: %w", err)
	}
	if err := json.Unmarshal(r.Metadata, &txn.Metadata); err != nil {
		return nil, fmt.Errorf("postgres: decode metadata: %w", err)
	}
	return txn, nil
}

func (r *logRow) toModel() (*account.LogEntry, error) {
	entryID, err := id.ParseBalanceLogID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: balance log id: %w", err)
	}
	txID, err := id.ParseTransactionID(r.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: transaction id: %w", err)
	}
	return &account.LogEntry{
		ID:            entryID,
		Address:       r.Address,
		Asset:         r.Asset,
		Delta:         r.Delta,
		TransactionID: txID,
		Reference:     r.Reference,
		CreatedAt:     r.CreatedAt,
	}, nil
}

// ==================== Account methods ====================

func (s *Store) GetAccount(ctx context.Context, ledgerName, addr string) (*account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT address, metadata, created_at, updated_at
		FROM ledger_accounts
		WHERE ledger = $1 AND address = $2`,
		ledgerName, addr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get account: %w", err)
	}

	acct := &account.Account{
		Address:  row.Address,
		Metadata: map[string]string{},
	}
	acct.CreatedAt = row.CreatedAt
	acct.UpdatedAt = row.UpdatedAt
	if err := json.Unmarshal(row.Metadata, &acct.Metadata); err != nil {
		return nil, fmt.Errorf("postgres: decode metadata: %w", err)
	}

	balances, err := s.GetBalances(ctx, ledgerName, addr)
	if err != nil {
		return nil, err
	}
	acct.Balances = balances
	return acct, nil
}

func (s *Store) CreateAccount(ctx context.Context, ledgerName string, acct *account.Account) error {
	meta, err := json.Marshal(acct.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_accounts (ledger, address, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ledgerName, acct.Address, meta, acct.CreatedAt, acct.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create account: %w", err)
	}
	return nil
}

func (s *Store) SetAccountMetadata(ctx context.Context, ledgerName, addr, key, value string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_accounts (ledger, address, metadata, created_at, updated_at)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::text), $5, $5)
		ON CONFLICT (ledger, address) DO UPDATE
		SET metadata   = ledger_accounts.metadata || jsonb_build_object($3::text, $4::text),
		    updated_at = $5`,
		ledgerName, addr, key, value, now)
	if err != nil {
		return fmt.Errorf("postgres: set metadata: %w", err)
	}
	return nil
}

func (s *Store) GetBalances(ctx context.Context, ledgerName, addr string) (types.Balances, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, amount
		FROM ledger_balances
		WHERE ledger = $1 AND address = $2 AND amount <> 0`,
		ledgerName, addr)
	if err != nil {
		return nil, fmt.Errorf("postgres: get balances: %w", err)
	}
	defer rows.Close()

	balances := types.Balances{}
	for rows.Next() {
		var asset string
		var amount int64
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[asset] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get balances: %w", err)
	}
	return balances, nil
}

func (s *Store) GetBalance(ctx context.Context, ledgerName, addr, asset string) (int64, error) {
	var amount int64
	err := s.db.GetContext(ctx, &amount, `
		SELECT amount FROM ledger_balances
		WHERE ledger = $1 AND address = $2 AND asset = $3`,
		ledgerName, addr, asset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get balance: %w", err)
	}
	return amount, nil
}

// ==================== Transaction methods ====================

func (s *Store) CommitTransaction(ctx context.Context, ledgerName string, txn *transaction.Transaction, entries []*account.LogEntry) error {
	postings, err := json.Marshal(txn.Postings)
	if err != nil {
		return fmt.Errorf("postgres: encode postings: %w", err)
	}
	meta, err := json.Marshal(txn.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: encode metadata: %w", err)
	}

	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (ledger, id, reference, postings, metadata, digest, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ledgerName, txn.ID.String(), txn.Reference, postings, meta, txn.Digest, txn.Timestamp)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert transaction: %w", err)
	}

	for _, e := range entries {
		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO ledger_balance_log (ledger, id, address, asset, delta, transaction_id, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ledgerName, e.ID.String(), e.Address, e.Asset, e.Delta, e.TransactionID.String(), e.Reference, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert log entry: %w", err)
		}

		_, err = dbTx.ExecContext(ctx, `
			INSERT INTO ledger_balances (ledger, address, asset, amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (ledger, address, asset) DO UPDATE
			SET amount = ledger_balances.amount + EXCLUDED.amount`,
			ledgerName, e.Address, e.Asset, e.Delta)
		if err != nil {
			return fmt.Errorf("postgres: update balance: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ledgerName string, txID id.TransactionID) (*transaction.Transaction, error) {
	var row txnRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, reference, postings, metadata, digest, ts
		FROM ledger_transactions
		WHERE ledger = $1 AND id = $2`,
		ledgerName, txID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get transaction: %w", err)
	}
	return row.toModel()
}

func (s *Store) GetTransactionByReference(ctx context.Context, ledgerName, reference string) (*transaction.Transaction, error) {
	var row txnRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, reference, postings, metadata, digest, ts
		FROM ledger_transactions
		WHERE ledger = $1 AND reference = $2`,
		ledgerName, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get transaction by reference: %w", err)
	}
	return row.toModel()
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, ledgerName, addr string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	// Membership comes from the balance log: every posting writes one
	// entry per side, so the log is a complete index of which
	// transactions touch an address.
	query := `
		SELECT id, reference, postings, metadata, digest, ts
		FROM ledger_transactions
		WHERE ledger = $1 AND id IN (
			SELECT DISTINCT transaction_id FROM ledger_balance_log
			WHERE ledger = $1 AND address = $2
		)`
	args := []any{ledgerName, addr}

	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !opts.AfterTime.IsZero() {
		args = append(args, opts.AfterTime, opts.AfterID)
		query += fmt.Sprintf(" AND (ts, id) > ($%d, $%d)", len(args)-1, len(args))
	}
	query += " ORDER BY ts ASC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []txnRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}

	out := make([]*transaction.Transaction, 0, len(rows))
	for i := range rows {
		txn, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

func (s *Store) MarkTransactionReverted(ctx context.Context, ledgerName string, txID, revertID id.TransactionID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ledger_transactions
		SET metadata = metadata || jsonb_build_object($3::text, $4::text)
		WHERE ledger = $1 AND id = $2`,
		ledgerName, txID.String(), transaction.MetaRevertedBy, revertID.String())
	if err != nil {
		return fmt.Errorf("postgres: mark reverted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: mark reverted: %w", err)
	}
	if n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) LastCommitTime(ctx context.Context, ledgerName string) (time.Time, error) {
	var last sql.NullTime
	err := s.db.GetContext(ctx, &last, `
		SELECT max(ts) FROM ledger_transactions WHERE ledger = $1`,
		ledgerName)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last commit time: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// ==================== Balance log methods ====================

func (s *Store) ListBalanceLog(ctx context.Context, ledgerName, addr string, opts account.LogOpts) ([]*account.LogEntry, error) {
	query := `
		SELECT id, address, asset, delta, transaction_id, reference, created_at
		FROM ledger_balance_log
		WHERE ledger = $1 AND address = $2`
	args := []any{ledgerName, addr}

	if opts.Asset != "" {
		args = append(args, opts.Asset)
		query += fmt.Sprintf(" AND asset = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list balance log: %w", err)
	}

	out := make([]*account.LogEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) RecomputeBalances(ctx context.Context, ledgerName, addr string) (types.Balances, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, sum(delta)
		FROM ledger_balance_log
		WHERE ledger = $1 AND address = $2
		GROUP BY asset
		HAVING sum(delta) <> 0`,
		ledgerName, addr)
	if err != nil {
		return nil, fmt.Errorf("postgres: recompute balances: %w", err)
	}
	defer rows.Close()

	balances := types.Balances{}
	for rows.Next() {
		var asset string
		var amount int64
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[asset] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recompute balances: %w", err)
	}
	return balances, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint hit.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
