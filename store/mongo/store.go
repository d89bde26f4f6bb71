// Package mongo provides a MongoDB store driver.
//
// CommitTransaction uses a multi-document session transaction, so the
// backend must be a replica set or sharded cluster. The unique
// (ledger, reference) index on the transactions collection is the
// durable idempotency guard across processes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/account"
	"github.com/dway/ledger/id"
	ledgerstore "github.com/dway/ledger/store"
	"github.com/dway/ledger/transaction"
	"github.com/dway/ledger/types"
)

// Collection name constants.
const (
	colAccounts     = "ledger_accounts"
	colTransactions = "ledger_transactions"
	colBalanceLog   = "ledger_balance_log"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an existing client and database.
func New(client *mongo.Client, dbName string) *Store {
	return &Store{
		client: client,
		db:     client.Database(dbName),
	}
}

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ledger/mongo: ping: %w", err)
	}
	return New(client, dbName), nil
}

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("ledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Account methods ====================

func (s *Store) GetAccount(ctx context.Context, ledgerName, addr string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOne(ctx, bson.M{"ledger": ledgerName, "address": addr}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) CreateAccount(ctx context.Context, ledgerName string, acct *account.Account) error {
	_, err := s.db.Collection(colAccounts).InsertOne(ctx, toAccountModel(ledgerName, acct))
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("ledger/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) SetAccountMetadata(ctx context.Context, ledgerName, addr, key, value string) error {
	now := time.Now().UTC()
	_, err := s.db.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"ledger": ledgerName, "address": addr},
		bson.M{
			"$set":         bson.M{"metadata." + key: value, "updated_at": now},
			"$setOnInsert": bson.M{"balances": bson.M{}, "created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ledger/mongo: set metadata: %w", err)
	}
	return nil
}

func (s *Store) GetBalances(ctx context.Context, ledgerName, addr string) (types.Balances, error) {
	acct, err := s.GetAccount(ctx, ledgerName, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return types.Balances{}, nil
	}
	if err != nil {
		return nil, err
	}
	return acct.Balances, nil
}

func (s *Store) GetBalance(ctx context.Context, ledgerName, addr, asset string) (int64, error) {
	balances, err := s.GetBalances(ctx, ledgerName, addr)
	if err != nil {
		return 0, err
	}
	return balances.Get(asset), nil
}

// ==================== Transaction methods ====================

func (s *Store) CommitTransaction(ctx context.Context, ledgerName string, txn *transaction.Transaction, entries []*account.LogEntry) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ledger/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTxnModel(ledgerName, txn)); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		for _, e := range entries {
			if _, err := s.db.Collection(colBalanceLog).InsertOne(ctx, toLogModel(ledgerName, e)); err != nil {
				return nil, err
			}
			_, err := s.db.Collection(colAccounts).UpdateOne(ctx,
				bson.M{"ledger": ledgerName, "address": e.Address},
				bson.M{
					"$inc":         bson.M{"balances." + e.Asset: e.Delta},
					"$set":         bson.M{"updated_at": now},
					"$setOnInsert": bson.M{"created_at": now},
				},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("ledger/mongo: commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ledgerName string, txID id.TransactionID) (*transaction.Transaction, error) {
	var m txnModel
	err := s.db.Collection(colTransactions).
		FindOne(ctx, bson.M{"ledger": ledgerName, "_id": txID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get transaction: %w", err)
	}
	return fromTxnModel(&m)
}

func (s *Store) GetTransactionByReference(ctx context.Context, ledgerName, reference string) (*transaction.Transaction, error) {
	var m txnModel
	err := s.db.Collection(colTransactions).
		FindOne(ctx, bson.M{"ledger": ledgerName, "reference": reference}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get transaction by reference: %w", err)
	}
	return fromTxnModel(&m)
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, ledgerName, addr string, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	filter := bson.M{"ledger": ledgerName, "addresses": addr}
	if !opts.Since.IsZero() {
		filter["ts"] = bson.M{"$gte": opts.Since}
	}
	if !opts.AfterTime.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"ts": bson.M{"$gt": opts.AfterTime}},
			bson.M{"ts": opts.AfterTime, "_id": bson.M{"$gt": opts.AfterID}},
		}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(colTransactions).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: list transactions: %w", err)
	}
	var models []txnModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list transactions: %w", err)
	}

	out := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		txn, err := fromTxnModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

func (s *Store) MarkTransactionReverted(ctx context.Context, ledgerName string, txID, revertID id.TransactionID) error {
	res, err := s.db.Collection(colTransactions).UpdateOne(ctx,
		bson.M{"ledger": ledgerName, "_id": txID.String()},
		bson.M{"$set": bson.M{"metadata." + transaction.MetaRevertedBy: revertID.String()}},
	)
	if err != nil {
		return fmt.Errorf("ledger/mongo: mark reverted: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) LastCommitTime(ctx context.Context, ledgerName string) (time.Time, error) {
	var m txnModel
	err := s.db.Collection(colTransactions).
		FindOne(ctx, bson.M{"ledger": ledgerName},
			options.FindOne().SetSort(bson.D{{Key: "ts", Value: -1}})).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("ledger/mongo: last commit time: %w", err)
	}
	return m.Timestamp, nil
}

// ==================== Balance log methods ====================

func (s *Store) ListBalanceLog(ctx context.Context, ledgerName, addr string, opts account.LogOpts) ([]*account.LogEntry, error) {
	filter := bson.M{"ledger": ledgerName, "address": addr}
	if opts.Asset != "" {
		filter["asset"] = opts.Asset
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(colBalanceLog).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: list balance log: %w", err)
	}
	var models []logModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list balance log: %w", err)
	}

	out := make([]*account.LogEntry, 0, len(models))
	for i := range models {
		entry, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) RecomputeBalances(ctx context.Context, ledgerName, addr string) (types.Balances, error) {
	cursor, err := s.db.Collection(colBalanceLog).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ledger": ledgerName, "address": addr}}},
		{{Key: "$group", Value: bson.M{"_id": "$asset", "amount": bson.M{"$sum": "$delta"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: recompute balances: %w", err)
	}

	var rows []struct {
		Asset  string `bson:"_id"`
		Amount int64  `bson:"amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("ledger/mongo: recompute balances: %w", err)
	}

	balances := types.Balances{}
	for _, r := range rows {
		if r.Amount != 0 {
			balances[r.Asset] = r.Amount
		}
	}
	return balances, nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "ledger", Value: 1}, {Key: "address", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTransactions: {
			{
				Keys:    bson.D{{Key: "ledger", Value: 1}, {Key: "reference", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "ledger", Value: 1}, {Key: "ts", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "ledger", Value: 1}, {Key: "addresses", Value: 1}, {Key: "ts", Value: 1}}},
		},
		colBalanceLog: {
			{Keys: bson.D{{Key: "ledger", Value: 1}, {Key: "address", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "ledger", Value: 1}, {Key: "address", Value: 1}, {Key: "asset", Value: 1}}},
		},
	}
}
