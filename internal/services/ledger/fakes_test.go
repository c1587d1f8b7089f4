package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/fastprodman/pointsarena/internal/repos/balances"
	entries "github.com/fastprodman/pointsarena/internal/repos/ledger"
)

// memStore is a non-transactional stand-in for both repositories. Tests pair
// it with sqlmock, which checks the transaction boundaries.
type memStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []entries.Entry
	byKey    map[string]int

	// onInsert, when set, runs before an insert and may return an error.
	onInsert func(e *entries.Entry) error

	lastLimit int
}

func newMemStore() *memStore {
	return &memStore{balances: map[string]int64{}, byKey: map[string]int{}}
}

var (
	_ balances.Balances = (*memStore)(nil)
	_ entries.Ledger    = (*memStore)(nil)
)

func (m *memStore) Get(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[accountID]
	if !ok {
		return 0, balances.ErrNotFound
	}

	return b, nil
}

func (m *memStore) Ensure(_ context.Context, _ *sql.Tx, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.balances[accountID]; !ok {
		m.balances[accountID] = 0
	}

	return nil
}

func (m *memStore) LockAndGet(ctx context.Context, _ *sql.Tx, accountID string) (int64, error) {
	return m.Get(ctx, accountID)
}

func (m *memStore) Increase(_ context.Context, _ *sql.Tx, accountID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[accountID] += amount

	return m.balances[accountID], nil
}

func (m *memStore) Decrease(_ context.Context, _ *sql.Tx, accountID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[accountID] < amount {
		return 0, balances.ErrInsufficientFunds
	}

	m.balances[accountID] -= amount

	return m.balances[accountID], nil
}

func (m *memStore) Insert(_ context.Context, _ *sql.Tx, e *entries.Entry) error {
	if m.onInsert != nil {
		hook := m.onInsert
		m.onInsert = nil

		err := hook(e)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byKey[e.IdempotencyKey]; ok {
		return entries.ErrDuplicateKey
	}

	e.CreatedAt = time.Now()
	m.byKey[e.IdempotencyKey] = len(m.entries)
	m.entries = append(m.entries, *e)

	return nil
}

func (m *memStore) put(e entries.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byKey[e.IdempotencyKey] = len(m.entries)
	m.entries = append(m.entries, e)
}

func (m *memStore) GetByIdempotencyKey(_ context.Context, _ *sql.Tx, key string) (entries.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byKey[key]
	if !ok {
		return entries.Entry{}, entries.ErrNotFound
	}

	return m.entries[i], nil
}

func (m *memStore) ListByAccount(_ context.Context, accountID string, limit int) ([]entries.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLimit = limit

	var out []entries.Entry

	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].AccountID == accountID {
			out = append(out, m.entries[i])
		}
	}

	return out, nil
}
