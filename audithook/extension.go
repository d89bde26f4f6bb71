// Package audithook bridges ledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dway/ledger/account"
	"github.com/dway/ledger/plugin"
	"github.com/dway/ledger/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnAccountCreated       = (*Extension)(nil)
	_ plugin.OnMetadataUpdated      = (*Extension)(nil)
	_ plugin.OnTransactionCommitted = (*Extension)(nil)
	_ plugin.OnTransactionReverted  = (*Extension)(nil)
	_ plugin.OnCommitRejected       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audithook package does not import any
// concrete audit system — callers inject the backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, ledgerName string, acct interface{}) error {
	var addr string
	if a, ok := acct.(*account.Account); ok {
		addr = a.Address
	}
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, addr, CategoryLedger, nil,
		"ledger", ledgerName,
	)
}

// OnMetadataUpdated implements plugin.OnMetadataUpdated.
// Setting the closed flag is audited as an account closure.
func (e *Extension) OnMetadataUpdated(ctx context.Context, ledgerName, addr, key, value string) error {
	if key == account.MetaClosed && value == "true" {
		return e.record(ctx, ActionAccountClosed, SeverityWarning, OutcomeSuccess,
			ResourceAccount, addr, CategoryCompliance, nil,
			"ledger", ledgerName,
		)
	}
	return e.record(ctx, ActionMetadataUpdated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, addr, CategoryLedger, nil,
		"ledger", ledgerName,
		"key", key,
		"value", value,
	)
}

// ──────────────────────────────────────────────────
// Transaction lifecycle hooks
// ──────────────────────────────────────────────────

// OnTransactionCommitted implements plugin.OnTransactionCommitted.
func (e *Extension) OnTransactionCommitted(ctx context.Context, ledgerName string, txn interface{}, elapsed time.Duration) error {
	var id, ref string
	var postings int
	if t, ok := txn.(*transaction.Transaction); ok {
		id = t.ID.String()
		ref = t.Reference
		postings = len(t.Postings)
	}
	return e.record(ctx, ActionTransactionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, id, CategoryLedger, nil,
		"ledger", ledgerName,
		"reference", ref,
		"postings", postings,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTransactionReverted implements plugin.OnTransactionReverted.
func (e *Extension) OnTransactionReverted(ctx context.Context, ledgerName string, original, compensating interface{}) error {
	var origID, compID string
	if t, ok := original.(*transaction.Transaction); ok {
		origID = t.ID.String()
	}
	if t, ok := compensating.(*transaction.Transaction); ok {
		compID = t.ID.String()
	}
	return e.record(ctx, ActionTransactionReverted, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, origID, CategoryCompliance, nil,
		"ledger", ledgerName,
		"reverted_by", compID,
	)
}

// OnCommitRejected implements plugin.OnCommitRejected.
func (e *Extension) OnCommitRejected(ctx context.Context, ledgerName, reference string, reason error) error {
	return e.record(ctx, ActionCommitRejected, SeverityError, OutcomeFailure,
		ResourceTransaction, reference, CategoryCompliance, reason,
		"ledger", ledgerName,
		"reference", reference,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
