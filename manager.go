package ledger

import (
	"context"
	"sync"

	"github.com/dway/ledger/store"
)

// Manager hands out one engine per ledger name over a shared store.
// Engines for different names share no mutable state, so their commits
// proceed fully in parallel; commits within one name are serialized by
// that engine's lock. The Manager owns the store and closes it.
type Manager struct {
	store store.Store
	opts  []Option

	mu      sync.Mutex
	ledgers map[string]*Ledger
	closed  bool
}

// NewManager creates a Manager over a shared store. The options are
// applied to every engine it opens (WithName is set by the Manager and
// must not be passed here).
func NewManager(s store.Store, opts ...Option) *Manager {
	return &Manager{
		store:   s,
		opts:    opts,
		ledgers: make(map[string]*Ledger),
	}
}

// Open returns the engine for a ledger name, starting it on first use.
// Subsequent calls with the same name return the same engine.
func (m *Manager) Open(ctx context.Context, name string) (*Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrLedgerClosed
	}
	if l, ok := m.ledgers[name]; ok {
		return l, nil
	}

	opts := append(append([]Option{}, m.opts...), WithName(name))
	l := New(m.store, opts...)
	if err := l.Start(ctx); err != nil {
		return nil, err
	}

	m.ledgers[name] = l
	return l, nil
}

// Names returns the names of all open ledgers.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.ledgers))
	for name := range m.ledgers {
		names = append(names, name)
	}
	return names
}

// Close stops every open engine and closes the shared store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for _, l := range m.ledgers {
		_ = l.Stop() //nolint:errcheck // Stop never fails
	}
	return m.store.Close()
}
