package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/address"
	"github.com/dway/ledger/id"
	"github.com/dway/ledger/plugin"
	"github.com/dway/ledger/store"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// DefaultName is the ledger name used when none is configured.
const DefaultName = "main"

// DefaultPageSize bounds ListTransactions when no limit is given.
const DefaultPageSize = 100

// CommitResult reports the outcome of a committed (or replayed) apply.
type CommitResult struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	Timestamp     time.Time        `json:"timestamp"`
	Replayed      bool             `json:"replayed"`
}

// ReplayRecord is the cached outcome of a committed apply, keyed by
// reference. The digest lets a cache hit distinguish an idempotent
// replay from a reference conflict without touching the store.
type ReplayRecord struct {
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
	Digest        string    `json:"digest"`
}

// ReplayCache is an optional read-through cache for reference lookups.
// Implementations are best-effort: a miss falls back to the store and a
// failed Set is silently tolerated. See the replaycache package for a
// Redis-backed implementation.
type ReplayCache interface {
	Get(ctx context.Context, ledger, reference string) (*ReplayRecord, bool)
	Set(ctx context.Context, ledger, reference string, rec *ReplayRecord)
}

// Ledger is the double-entry transaction engine for one named ledger.
//
// All writes are serialized through a per-ledger commit lock so the
// check-and-apply of every transaction is atomic relative to other
// writers. Reads take no lock and observe only committed state.
// Ledgers with different names share no mutable state and commit in
// parallel; use a Manager to hand out one engine per name over a
// shared store.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	replay  ReplayCache
	name    string
	clock   func() time.Time

	// commitMu serializes the validate-then-commit critical section.
	// lastCommit and seeded are guarded by it.
	commitMu   sync.Mutex
	lastCommit time.Time
	seeded     bool

	stopped atomic.Bool
}

// New creates a new Ledger instance over the given store.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		name:    DefaultName,
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.plugins.WithLogger(l.logger)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration skipped", "plugin", p.Name(), "error", err)
		}
	}
}

// WithName sets the ledger name. Each name is an isolated ledger within
// the shared store.
func WithName(name string) Option {
	return func(l *Ledger) {
		l.name = name
	}
}

// WithReplayCache installs a reference replay cache in front of the
// store's reference lookup.
func WithReplayCache(c ReplayCache) Option {
	return func(l *Ledger) {
		l.replay = c
	}
}

// WithClock overrides the commit clock. Timestamps are still forced
// monotonic per ledger regardless of what the clock returns.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// Name returns the ledger name.
func (l *Ledger) Name() string { return l.name }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrDurability, err)
	}

	l.commitMu.Lock()
	err := l.seedClockLocked(ctx)
	l.commitMu.Unlock()
	if err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started", "ledger", l.name)
	return nil
}

// Stop shuts down the engine and its plugins. The store is shared and
// stays open; closing it belongs to whoever created it (see Manager).
func (l *Ledger) Stop() error {
	if l.stopped.Swap(true) {
		return nil
	}
	l.plugins.EmitShutdown(context.Background())
	return nil
}

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// CreateAccount explicitly creates an account with initial metadata.
// Accounts also come into existence implicitly on their first posting;
// explicit creation is for attaching metadata up front.
func (l *Ledger) CreateAccount(ctx context.Context, addr string, metadata map[string]string) (*account.Account, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return nil, validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	if a.IsWorld() {
		return nil, validationErr(ErrInvalidAddress, "address", "@world is the system boundary, not an account")
	}

	acct := account.New(addr, metadata)
	if err := l.store.CreateAccount(ctx, l.name, acct); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("%w: create account: %v", ErrDurability, err)
	}

	l.plugins.EmitAccountCreated(ctx, l.name, acct)
	return acct, nil
}

// GetAccount returns the account at addr. A valid address with no
// history resolves to a zero-balance virtual account.
func (l *Ledger) GetAccount(ctx context.Context, addr string) (*account.Account, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return nil, validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	if a.IsWorld() {
		return nil, validationErr(ErrInvalidAddress, "address", "@world is the system boundary, not an account")
	}

	acct, err := l.store.GetAccount(ctx, l.name, addr)
	if IsNotFound(err) {
		return account.New(addr, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account: %v", ErrDurability, err)
	}
	return acct, nil
}

// SetAccountMetadata upserts one metadata key. Idempotent.
func (l *Ledger) SetAccountMetadata(ctx context.Context, addr, key, value string) error {
	a, err := address.Parse(addr)
	if err != nil {
		return validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	if a.IsWorld() {
		return validationErr(ErrInvalidAddress, "address", "@world is the system boundary, not an account")
	}
	if key == "" {
		return validationErr(ErrInvalidInput, "key", "metadata key must be non-empty")
	}

	if err := l.store.SetAccountMetadata(ctx, l.name, addr, key, value); err != nil {
		return fmt.Errorf("%w: set metadata: %v", ErrDurability, err)
	}

	l.plugins.EmitMetadataUpdated(ctx, l.name, addr, key, value)
	return nil
}

// CloseAccount logically closes an account. History is preserved and
// balances remain queryable; new postings touching the account are
// rejected.
func (l *Ledger) CloseAccount(ctx context.Context, addr string) error {
	return l.SetAccountMetadata(ctx, addr, account.MetaClosed, "true")
}

// ──────────────────────────────────────────────────
// Transaction Engine
// ──────────────────────────────────────────────────

// Apply validates and atomically commits a transaction.
//
// The reference is the caller's idempotency key: re-applying the same
// reference with an identical payload returns the original result with
// Replayed set and changes nothing; the same reference with a different
// payload fails with ErrReferenceConflict. Validation failures are
// returned before anything is written. Once the commit has been handed
// to the store it is not cancellable — a caller that times out must
// retry with the same reference or look the reference up, never assume
// failure.
func (l *Ledger) Apply(ctx context.Context, reference string, postings []transaction.Posting, metadata map[string]string) (*CommitResult, error) {
	if l.stopped.Load() {
		return nil, ErrLedgerClosed
	}
	if reference == "" {
		return nil, validationErr(ErrReferenceRequired, "reference", "an idempotency reference is required")
	}

	digest := transaction.Digest(postings, metadata)

	// Fast path: a cached replay record resolves retries without the
	// commit lock or a store round-trip.
	if l.replay != nil {
		if rec, ok := l.replay.Get(ctx, l.name, reference); ok {
			return l.resolveReplay(rec, digest)
		}
	}

	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	if err := l.seedClockLocked(ctx); err != nil {
		return nil, err
	}

	existing, err := l.store.GetTransactionByReference(ctx, l.name, reference)
	switch {
	case err == nil:
		return l.replayExisting(ctx, existing, digest)
	case !IsNotFound(err):
		return nil, fmt.Errorf("%w: reference lookup: %v", ErrDurability, err)
	}

	if _, err := l.validatePostings(ctx, postings, metadata); err != nil {
		l.plugins.EmitCommitRejected(ctx, l.name, reference, err)
		return nil, err
	}

	start := l.clock()
	txn := &transaction.Transaction{
		ID:        id.NewTransactionID(),
		Reference: reference,
		Postings:  append([]transaction.Posting(nil), postings...),
		Metadata:  copyMetadata(metadata),
		Timestamp: l.commitTimeLocked(),
		Digest:    digest,
	}

	if err := l.store.CommitTransaction(ctx, l.name, txn, balanceLog(txn)); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Another writer (separate process on the same backend)
			// landed this reference first; resolve as replay/conflict.
			if landed, lookupErr := l.store.GetTransactionByReference(ctx, l.name, reference); lookupErr == nil {
				return l.replayExisting(ctx, landed, digest)
			}
		}
		return nil, fmt.Errorf("%w: commit %q: %v", ErrDurability, reference, err)
	}

	elapsed := l.clock().Sub(start)
	l.cacheReplay(ctx, txn)
	l.plugins.EmitTransactionCommitted(ctx, l.name, txn, elapsed)

	l.logger.Debug("transaction committed",
		"ledger", l.name,
		"transaction_id", txn.ID.String(),
		"reference", reference,
		"postings", len(txn.Postings),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return &CommitResult{TransactionID: txn.ID, Timestamp: txn.Timestamp}, nil
}

// DryRun validates a candidate transaction and returns the net
// per-account, per-asset balance changes it would cause. Nothing is
// written and no commit lock is taken; balance checks read a snapshot
// that may trail the latest commit.
func (l *Ledger) DryRun(ctx context.Context, postings []transaction.Posting, metadata map[string]string) (map[string]types.Balances, error) {
	return l.validatePostings(ctx, postings, metadata)
}

// Revert synthesizes and commits a compensating transaction whose
// postings exactly invert the original. The original record is never
// deleted or mutated beyond stamping its reverted_by metadata.
func (l *Ledger) Revert(ctx context.Context, txID id.TransactionID) (*CommitResult, error) {
	original, err := l.store.GetTransaction(ctx, l.name, txID)
	if IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction: %v", ErrDurability, err)
	}
	if original.Reverted() {
		return nil, ErrAlreadyReverted
	}

	metadata := map[string]string{
		transaction.MetaType:    transaction.TypeRevert,
		transaction.MetaReverts: txID.String(),
	}

	// A deterministic reference makes the revert itself idempotent.
	res, err := l.Apply(ctx, "revert:"+txID.String(), original.Inverse(), metadata)
	if err != nil {
		return nil, err
	}

	if err := l.store.MarkTransactionReverted(ctx, l.name, txID, res.TransactionID); err != nil {
		// The compensating transaction is committed either way; the
		// linkage survives in its reverts metadata.
		l.logger.Warn("failed to stamp reverted_by",
			"ledger", l.name,
			"transaction_id", txID.String(),
			"error", err,
		)
	}

	if compensating, lookupErr := l.store.GetTransaction(ctx, l.name, res.TransactionID); lookupErr == nil {
		l.plugins.EmitTransactionReverted(ctx, l.name, original, compensating)
	}

	return res, nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetBalance returns the committed balance of one asset, zero if the
// account has no history.
func (l *Ledger) GetBalance(ctx context.Context, addr, asset string) (int64, error) {
	if err := address.Validate(addr); err != nil {
		return 0, validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	balance, err := l.store.GetBalance(ctx, l.name, addr, asset)
	if err != nil {
		return 0, fmt.Errorf("%w: get balance: %v", ErrDurability, err)
	}
	return balance, nil
}

// GetBalances returns every non-zero committed balance of an account.
func (l *Ledger) GetBalances(ctx context.Context, addr string) (types.Balances, error) {
	if err := address.Validate(addr); err != nil {
		return nil, validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	balances, err := l.store.GetBalances(ctx, l.name, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: get balances: %v", ErrDurability, err)
	}
	return balances, nil
}

// QueryOpts filters ListTransactions.
type QueryOpts struct {
	// Since drops transactions committed before this time.
	Since time.Time
	// Cursor resumes a previous listing from its next-page token.
	Cursor string
	// Limit caps the page size; DefaultPageSize when zero.
	Limit int
}

// ListTransactions returns committed transactions touching addr in
// ascending commit order, with an opaque token to resume the listing.
// The token is empty when the listing is exhausted.
func (l *Ledger) ListTransactions(ctx context.Context, addr string, opts QueryOpts) ([]*transaction.Transaction, string, error) {
	if err := address.Validate(addr); err != nil {
		return nil, "", validationErr(ErrInvalidAddress, "address", "%v", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	listOpts := transaction.ListOpts{Since: opts.Since, Limit: limit}
	if opts.Cursor != "" {
		c, err := transaction.DecodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", validationErr(ErrInvalidInput, "cursor", "%v", err)
		}
		listOpts.AfterTime = c.Timestamp
		listOpts.AfterID = c.ID
	}

	txns, err := l.store.ListTransactionsByAccount(ctx, l.name, addr, listOpts)
	if err != nil {
		return nil, "", fmt.Errorf("%w: list transactions: %v", ErrDurability, err)
	}

	next := ""
	if len(txns) == limit {
		last := txns[len(txns)-1]
		next = transaction.EncodeCursor(transaction.Cursor{
			Timestamp: last.Timestamp,
			ID:        last.ID.String(),
		})
	}
	return txns, next, nil
}

// GetTransaction returns one committed transaction by id.
func (l *Ledger) GetTransaction(ctx context.Context, txID id.TransactionID) (*transaction.Transaction, error) {
	txn, err := l.store.GetTransaction(ctx, l.name, txID)
	if IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction: %v", ErrDurability, err)
	}
	return txn, nil
}

// GetTransactionByReference resolves an idempotency reference to its
// committed transaction, letting a timed-out caller decide whether a
// retry is needed.
func (l *Ledger) GetTransactionByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	txn, err := l.store.GetTransactionByReference(ctx, l.name, reference)
	if IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction by reference: %v", ErrDurability, err)
	}
	return txn, nil
}

// ListBalanceLog returns the append-only balance log entries for an
// account, oldest first. The current balance of every asset is the fold
// of these deltas.
func (l *Ledger) ListBalanceLog(ctx context.Context, addr string, opts account.LogOpts) ([]*account.LogEntry, error) {
	if err := address.Validate(addr); err != nil {
		return nil, validationErr(ErrInvalidAddress, "address", "%v", err)
	}
	entries, err := l.store.ListBalanceLog(ctx, l.name, addr, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list balance log: %v", ErrDurability, err)
	}
	return entries, nil
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

// seedClockLocked loads the last durable commit time once so monotonic
// timestamps survive restarts. commitMu must be held.
func (l *Ledger) seedClockLocked(ctx context.Context) error {
	if l.seeded {
		return nil
	}
	last, err := l.store.LastCommitTime(ctx, l.name)
	if err != nil {
		return fmt.Errorf("%w: last commit time: %v", ErrDurability, err)
	}
	l.lastCommit = last
	l.seeded = true
	return nil
}

// commitTimeLocked assigns the next commit timestamp, strictly after
// every previous commit of this ledger. commitMu must be held.
func (l *Ledger) commitTimeLocked() time.Time {
	now := l.clock().UTC()
	if !now.After(l.lastCommit) {
		now = l.lastCommit.Add(time.Nanosecond)
	}
	l.lastCommit = now
	return now
}

// resolveReplay answers an apply from a cached replay record.
func (l *Ledger) resolveReplay(rec *ReplayRecord, digest string) (*CommitResult, error) {
	if rec.Digest != digest {
		return nil, fmt.Errorf("%w: reference already used", ErrReferenceConflict)
	}
	txID, err := id.ParseTransactionID(rec.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: replay cache record: %v", ErrDurability, err)
	}
	return &CommitResult{TransactionID: txID, Timestamp: rec.Timestamp, Replayed: true}, nil
}

// replayExisting answers an apply from the durably recorded
// transaction with the same reference.
func (l *Ledger) replayExisting(ctx context.Context, txn *transaction.Transaction, digest string) (*CommitResult, error) {
	if txn.Digest != digest {
		return nil, fmt.Errorf("%w: reference %q", ErrReferenceConflict, txn.Reference)
	}
	l.cacheReplay(ctx, txn)
	return &CommitResult{TransactionID: txn.ID, Timestamp: txn.Timestamp, Replayed: true}, nil
}

// cacheReplay records a committed transaction in the replay cache.
func (l *Ledger) cacheReplay(ctx context.Context, txn *transaction.Transaction) {
	if l.replay == nil {
		return
	}
	l.replay.Set(ctx, l.name, txn.Reference, &ReplayRecord{
		TransactionID: txn.ID.String(),
		Timestamp:     txn.Timestamp,
		Digest:        txn.Digest,
	})
}

// balanceLog expands a transaction into its append-only balance log
// entries: one debit and one credit per posting, in posting order.
func balanceLog(txn *transaction.Transaction) []*account.LogEntry {
	entries := make([]*account.LogEntry, 0, len(txn.Postings)*2)
	for _, p := range txn.Postings {
		entries = append(entries,
			&account.LogEntry{
				ID:            id.NewBalanceLogID(),
				Address:       p.Source,
				Asset:         p.Asset,
				Delta:         -p.Amount,
				TransactionID: txn.ID,
				Reference:     txn.Reference,
				CreatedAt:     txn.Timestamp,
			},
			&account.LogEntry{
				ID:            id.NewBalanceLogID(),
				Address:       p.Destination,
				Asset:         p.Asset,
				Delta:         p.Amount,
				TransactionID: txn.ID,
				Reference:     txn.Reference,
				CreatedAt:     txn.Timestamp,
			},
		)
	}
	return entries
}

func copyMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
