// Package plugin provides an extensible plugin system for Ledger.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when an account is explicitly created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, ledger string, acct interface{}) error
}

// OnMetadataUpdated is called when account metadata is upserted.
type OnMetadataUpdated interface {
	Plugin
	OnMetadataUpdated(ctx context.Context, ledger, addr, key, value string) error
}

// ──────────────────────────────────────────────────
// Transaction lifecycle hooks
// ──────────────────────────────────────────────────

// OnTransactionCommitted is called after a transaction commits durably.
// Hook failures never roll back the commit.
type OnTransactionCommitted interface {
	Plugin
	OnTransactionCommitted(ctx context.Context, ledger string, txn interface{}, elapsed time.Duration) error
}

// OnTransactionReverted is called after a compensating transaction
// commits. Both the original and the compensating transaction are passed.
type OnTransactionReverted interface {
	Plugin
	OnTransactionReverted(ctx context.Context, ledger string, original, compensating interface{}) error
}

// OnCommitRejected is called when an apply is rejected by validation.
type OnCommitRejected interface {
	Plugin
	OnCommitRejected(ctx context.Context, ledger, reference string, reason error) error
}
