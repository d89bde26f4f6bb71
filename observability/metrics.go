// Package observability exposes ledger activity as Prometheus metrics.
//
// The Metrics plugin counts commits, rejections, and reverts, and records
// commit latency. Attach it with ledger.WithPlugin and expose the registry
// through promhttp in the host application.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	ledger "github.com/dway/ledger"
	"github.com/dway/ledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Metrics)(nil)
	_ plugin.OnTransactionCommitted = (*Metrics)(nil)
	_ plugin.OnTransactionReverted  = (*Metrics)(nil)
	_ plugin.OnCommitRejected       = (*Metrics)(nil)
	_ plugin.OnAccountCreated       = (*Metrics)(nil)
)

// Metrics is a plugin that records ledger activity in Prometheus collectors.
type Metrics struct {
	commits       *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	reverts       *prometheus.CounterVec
	accounts      *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
}

// Option configures a Metrics plugin.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	namespace  string
}

// WithRegisterer registers the collectors with the given registerer
// instead of the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithNamespace sets the metric namespace. Defaults to "ledger".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// New creates a Metrics plugin and registers its collectors.
func New(opts ...Option) *Metrics {
	o := &options{
		registerer: prometheus.DefaultRegisterer,
		namespace:  "ledger",
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Metrics{
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "transactions_committed_total",
				Help:      "Total transactions committed, by ledger.",
			},
			[]string{"ledger"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "commits_rejected_total",
				Help:      "Total commit attempts rejected by validation, by ledger and reason.",
			},
			[]string{"ledger", "reason"},
		),
		reverts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "transactions_reverted_total",
				Help:      "Total transactions reverted, by ledger.",
			},
			[]string{"ledger"},
		),
		accounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "accounts_created_total",
				Help:      "Total accounts explicitly created, by ledger.",
			},
			[]string{"ledger"},
		),
		commitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "commit_duration_seconds",
				Help:      "Latency of durable transaction commits.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"ledger"},
		),
	}

	o.registerer.MustRegister(m.commits, m.rejections, m.reverts, m.accounts, m.commitLatency)
	return m
}

// Name implements plugin.Plugin.
func (m *Metrics) Name() string { return "prometheus-metrics" }

// OnTransactionCommitted implements plugin.OnTransactionCommitted.
func (m *Metrics) OnTransactionCommitted(_ context.Context, ledgerName string, _ interface{}, elapsed time.Duration) error {
	m.commits.WithLabelValues(ledgerName).Inc()
	m.commitLatency.WithLabelValues(ledgerName).Observe(elapsed.Seconds())
	return nil
}

// OnTransactionReverted implements plugin.OnTransactionReverted.
func (m *Metrics) OnTransactionReverted(_ context.Context, ledgerName string, _, _ interface{}) error {
	m.reverts.WithLabelValues(ledgerName).Inc()
	return nil
}

// OnCommitRejected implements plugin.OnCommitRejected.
func (m *Metrics) OnCommitRejected(_ context.Context, ledgerName, _ string, reason error) error {
	m.rejections.WithLabelValues(ledgerName, rejectionReason(reason)).Inc()
	return nil
}

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *Metrics) OnAccountCreated(_ context.Context, ledgerName string, _ interface{}) error {
	m.accounts.WithLabelValues(ledgerName).Inc()
	return nil
}

// rejectionReason maps a validation error to a stable, low-cardinality label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrEmptyPostings):
		return "empty_postings"
	case errors.Is(err, ledger.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ledger.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ledger.ErrSameAccount):
		return "same_account"
	case errors.Is(err, ledger.ErrUnbalancedPosting):
		return "unbalanced"
	case errors.Is(err, ledger.ErrMissingType):
		return "missing_type"
	case errors.Is(err, ledger.ErrAccountClosed):
		return "account_closed"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrReferenceRequired):
		return "reference_required"
	case errors.Is(err, ledger.ErrReferenceConflict):
		return "reference_conflict"
	default:
		return "other"
	}
}
