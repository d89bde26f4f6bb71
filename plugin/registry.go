package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so each emit walks only the plugins that
// implement the hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onAccountCreated       []OnAccountCreated
	onMetadataUpdated      []OnMetadataUpdated
	onTransactionCommitted []OnTransactionCommitted
	onTransactionReverted  []OnTransactionReverted
	onCommitRejected       []OnCommitRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnMetadataUpdated); ok {
		r.onMetadataUpdated = append(r.onMetadataUpdated, v)
	}
	if v, ok := p.(OnTransactionCommitted); ok {
		r.onTransactionCommitted = append(r.onTransactionCommitted, v)
	}
	if v, ok := p.(OnTransactionReverted); ok {
		r.onTransactionReverted = append(r.onTransactionReverted, v)
	}
	if v, ok := p.(OnCommitRejected); ok {
		r.onCommitRejected = append(r.onCommitRejected, v)
	}

	return nil
}

// Plugins returns the names of all registered plugins.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name()
	}
	return names
}

// hookFailed logs a hook error. Hook failures are never propagated to
// the commit path.
func (r *Registry) hookFailed(hook, name string, err error) {
	r.logger.Error("plugin hook failed",
		"hook", hook,
		"plugin", name,
		"error", err,
	)
}

// EmitInit dispatches OnInit to all interested plugins.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onInit {
		if err := p.OnInit(ctx, engine); err != nil {
			r.hookFailed("init", p.Name(), err)
		}
	}
}

// EmitShutdown dispatches OnShutdown to all interested plugins.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onShutdown {
		if err := p.OnShutdown(ctx); err != nil {
			r.hookFailed("shutdown", p.Name(), err)
		}
	}
}

// EmitAccountCreated dispatches OnAccountCreated to all interested plugins.
func (r *Registry) EmitAccountCreated(ctx context.Context, ledger string, acct interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onAccountCreated {
		if err := p.OnAccountCreated(ctx, ledger, acct); err != nil {
			r.hookFailed("account_created", p.Name(), err)
		}
	}
}

// EmitMetadataUpdated dispatches OnMetadataUpdated to all interested plugins.
func (r *Registry) EmitMetadataUpdated(ctx context.Context, ledger, addr, key, value string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onMetadataUpdated {
		if err := p.OnMetadataUpdated(ctx, ledger, addr, key, value); err != nil {
			r.hookFailed("metadata_updated", p.Name(), err)
		}
	}
}

// EmitTransactionCommitted dispatches OnTransactionCommitted to all
// interested plugins.
func (r *Registry) EmitTransactionCommitted(ctx context.Context, ledger string, txn interface{}, elapsed time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onTransactionCommitted {
		if err := p.OnTransactionCommitted(ctx, ledger, txn, elapsed); err != nil {
			r.hookFailed("transaction_committed", p.Name(), err)
		}
	}
}

// EmitTransactionReverted dispatches OnTransactionReverted to all
// interested plugins.
func (r *Registry) EmitTransactionReverted(ctx context.Context, ledger string, original, compensating interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onTransactionReverted {
		if err := p.OnTransactionReverted(ctx, ledger, original, compensating); err != nil {
			r.hookFailed("transaction_reverted", p.Name(), err)
		}
	}
}

// EmitCommitRejected dispatches OnCommitRejected to all interested plugins.
func (r *Registry) EmitCommitRejected(ctx context.Context, ledger, reference string, reason error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.onCommitRejected {
		if err := p.OnCommitRejected(ctx, ledger, reference, reason); err != nil {
			r.hookFailed("commit_rejected", p.Name(), err)
		}
	}
}
