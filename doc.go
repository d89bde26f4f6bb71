// Package ledger provides an embeddable double-entry ledger engine for Go
// applications.
//
// Ledger is designed as a library, not a service. Import it directly into
// your Go application and put your own transport in front. It provides:
//
//   - Double-entry bookkeeping: every transaction's postings balance to
//     zero net change per asset, enforced before any balance is touched
//   - Multi-asset accounts holding signed integer minor-unit balances
//   - Reference-based idempotency with conflict detection on payload drift
//   - Atomic commits: all postings of a transaction land or none do
//   - Compensating reverts that invert a transaction without mutating history
//   - An append-only balance log from which balances are recomputable
//   - Pluggable lifecycle hooks (Kafka publishing, audit trail, metrics)
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/dway/ledger"
//	    "github.com/dway/ledger/store/memory"
//	)
//
//	l := ledger.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	res, err := l.Apply(ctx, "tx-1",
//	    []ledger.Posting{{
//	        Source:      "users:alice@example.com:wallet",
//	        Destination: "users:bob@example.com:wallet",
//	        Asset:       "USD",
//	        Amount:      2500,
//	    }},
//	    map[string]string{"type": "p2p_transfer"},
//	)
//
// Re-issuing the identical call returns the same transaction id with
// Replayed set and moves nothing twice. Production deployments use the
// postgres or mongo store; the memory store backs tests.
//
// # Accounts
//
// Accounts are addressed by colon-separated paths under recognized
// namespaces ("users:", "business:", "treasury:", ...) validated by the
// address package. They exist implicitly from their first posting. The
// sentinel "@world" is the system boundary: funding an account is a
// posting from "@world", redemption is a posting to it.
//
// All amounts are integers in the asset's smallest unit (cents,
// satoshi). There is no floating point anywhere in the engine.
//
// # Concurrency
//
// One engine instance owns all writes for its ledger name; Apply calls
// are serialized through a per-ledger commit lock so check-and-apply is
// atomic relative to other writers. Reads never block writers. Use a
// Manager to run many independent ledgers over one store:
//
//	m := ledger.NewManager(store)
//	payments, _ := m.Open(ctx, "payments")
//	treasury, _ := m.Open(ctx, "treasury")
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41  // Transaction ID
//	bal_01h2xcejqtf2nbrexx3vqjhp41  // Balance log entry ID
//
// TypeIDs are K-sortable, giving natural time-ordering of committed
// transactions and stable pagination cursors.
package ledger
