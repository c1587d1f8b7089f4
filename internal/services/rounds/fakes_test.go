package rounds

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/repos/balances"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
	entries "github.com/fastprodman/pointsarena/internal/repos/ledger"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
)

// memRounds keeps rounds in memory and hides the seed the way the postgres
// repository does.
type memRounds struct {
	mu     sync.Mutex
	rounds map[uuid.UUID]Round
}

func newMemRounds() *memRounds {
	return &memRounds{rounds: map[uuid.UUID]Round{}}
}

var _ roundstore.Rounds = (*memRounds)(nil)

func (m *memRounds) visible(r Round) Round {
	if !r.Status.Revealed() {
		r.ServerSeed = ""
	}

	return r
}

func (m *memRounds) Create(_ context.Context, _ *sql.Tx, r *Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.CreatedAt = time.Now()
	m.rounds[r.ID] = *r

	return nil
}

func (m *memRounds) Get(_ context.Context, id uuid.UUID) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return Round{}, roundstore.ErrNotFound
	}

	return m.visible(r), nil
}

func (m *memRounds) GetForShare(ctx context.Context, _ *sql.Tx, id uuid.UUID) (Round, error) {
	return m.Get(ctx, id)
}

func (m *memRounds) GetOpenByType(_ context.Context, gameType string) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		best  Round
		found bool
	)

	for _, r := range m.rounds {
		if r.GameType != gameType || r.Status != roundstore.StatusOpen {
			continue
		}

		if !found || r.CreatedAt.After(best.CreatedAt) {
			best, found = r, true
		}
	}

	if !found {
		return Round{}, roundstore.ErrNotFound
	}

	return m.visible(best), nil
}

func (m *memRounds) GetServerSeed(_ context.Context, _ *sql.Tx, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return "", roundstore.ErrNotFound
	}

	return r.ServerSeed, nil
}

func (m *memRounds) Transition(_ context.Context, _ *sql.Tx, id uuid.UUID, to Status, from ...Status) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return Round{}, roundstore.ErrNotFound
	}

	if !slices.Contains(from, r.Status) {
		return m.visible(r), roundstore.ErrStatusMismatch
	}

	now := time.Now()
	r.Status = to

	switch to {
	case roundstore.StatusLocked:
		r.LockedAt = &now
	case roundstore.StatusSettled:
		r.SettledAt = &now
	case roundstore.StatusCancelled:
		r.CancelledAt = &now
	}

	m.rounds[id] = r

	return m.visible(r), nil
}

func (m *memRounds) Resolve(_ context.Context, _ *sql.Tx, id uuid.UUID, result json.RawMessage) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return Round{}, roundstore.ErrNotFound
	}

	if r.Status != roundstore.StatusLocked {
		return m.visible(r), roundstore.ErrStatusMismatch
	}

	now := time.Now()
	r.Status = roundstore.StatusResolved
	r.Result = result
	r.ResolvedAt = &now
	m.rounds[id] = r

	return m.visible(r), nil
}

// set overwrites a stored round, e.g. to tamper with its result.
func (m *memRounds) set(r Round) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rounds[r.ID] = r
}

// memBets keeps bets in memory. failMark makes marking chosen bets fail.
type memBets struct {
	mu       sync.Mutex
	bets     []Bet
	failMark map[uuid.UUID]error
}

var _ bets.Bets = (*memBets)(nil)

// failOn makes marking bet id fail with err; a nil err heals it.
func (m *memBets) failOn(id uuid.UUID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failMark == nil {
		m.failMark = map[uuid.UUID]error{}
	}

	if err == nil {
		delete(m.failMark, id)
		return
	}

	m.failMark[id] = err
}

func (m *memBets) get(id uuid.UUID) Bet {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bets {
		if b.ID == id {
			return b
		}
	}

	return Bet{}
}

func (m *memBets) Insert(_ context.Context, _ *sql.Tx, b *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, have := range m.bets {
		switch {
		case have.IdempotencyKey == b.IdempotencyKey:
			return bets.ErrDuplicateKey
		case have.RoundID == b.RoundID && have.AccountID == b.AccountID:
			return bets.ErrDuplicateBet
		}
	}

	b.Status = bets.StatusPlaced
	b.CreatedAt = time.Now()
	m.bets = append(m.bets, *b)

	return nil
}

func (m *memBets) GetByIdempotencyKey(_ context.Context, _ *sql.Tx, key string) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bets {
		if b.IdempotencyKey == key {
			return b, nil
		}
	}

	return Bet{}, bets.ErrNotFound
}

func (m *memBets) ListByStatus(_ context.Context, roundID uuid.UUID, status BetStatus) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Bet

	for _, b := range m.bets {
		if b.RoundID == roundID && b.Status == status {
			out = append(out, b)
		}
	}

	return out, nil
}

func (m *memBets) ListByRound(_ context.Context, roundID uuid.UUID, accountID string) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Bet{}

	for _, b := range m.bets {
		if b.RoundID == roundID && (accountID == "" || b.AccountID == accountID) {
			out = append(out, b)
		}
	}

	return out, nil
}

func (m *memBets) MarkSettled(_ context.Context, _ *sql.Tx, betID uuid.UUID, payout int64) (bool, error) {
	return m.mark(betID, bets.StatusSettled, payout)
}

func (m *memBets) MarkCancelled(_ context.Context, _ *sql.Tx, betID uuid.UUID) (bool, error) {
	return m.mark(betID, bets.StatusCancelled, 0)
}

// mark moves a PLACED bet to status; any other bet is left alone.
func (m *memBets) mark(betID uuid.UUID, status BetStatus, payout int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failMark[betID]; err != nil {
		return false, err
	}

	for i := range m.bets {
		if m.bets[i].ID != betID {
			continue
		}

		if m.bets[i].Status != bets.StatusPlaced {
			return false, nil
		}

		now := time.Now()
		m.bets[i].Status = status
		m.bets[i].Payout = payout
		m.bets[i].SettledAt = &now

		return true, nil
	}

	return false, nil
}

// memLedger stands in for the balance and entry repositories of the ledger
// service. It is not transactional; sqlmock checks the boundaries.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []entries.Entry
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]int64{}}
}

var (
	_ balances.Balances = (*memLedger)(nil)
	_ entries.Ledger    = (*memLedger)(nil)
)

func (m *memLedger) fund(accountID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[accountID] += amount
}

func (m *memLedger) balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.balances[accountID]
}

// withKey counts the entries recorded under key.
func (m *memLedger) withKey(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, e := range m.entries {
		if e.IdempotencyKey == key {
			n++
		}
	}

	return n
}

func (m *memLedger) Get(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[accountID]
	if !ok {
		return 0, balances.ErrNotFound
	}

	return b, nil
}

func (m *memLedger) Ensure(_ context.Context, _ *sql.Tx, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.balances[accountID]; !ok {
		m.balances[accountID] = 0
	}

	return nil
}

func (m *memLedger) LockAndGet(ctx context.Context, _ *sql.Tx, accountID string) (int64, error) {
	return m.Get(ctx, accountID)
}

func (m *memLedger) Increase(_ context.Context, _ *sql.Tx, accountID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[accountID] += amount

	return m.balances[accountID], nil
}

func (m *memLedger) Decrease(_ context.Context, _ *sql.Tx, accountID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[accountID] < amount {
		return 0, balances.ErrInsufficientFunds
	}

	m.balances[accountID] -= amount

	return m.balances[accountID], nil
}

func (m *memLedger) Insert(_ context.Context, _ *sql.Tx, e *entries.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, have := range m.entries {
		if have.IdempotencyKey == e.IdempotencyKey {
			return entries.ErrDuplicateKey
		}
	}

	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)

	return nil
}

func (m *memLedger) GetByIdempotencyKey(_ context.Context, _ *sql.Tx, key string) (entries.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.IdempotencyKey == key {
			return e, nil
		}
	}

	return entries.Entry{}, entries.ErrNotFound
}

func (m *memLedger) ListByAccount(_ context.Context, accountID string, limit int) ([]entries.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []entries.Entry

	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].AccountID == accountID {
			out = append(out, m.entries[i])
		}
	}

	return out, nil
}
