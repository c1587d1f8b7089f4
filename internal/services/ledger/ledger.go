// Package ledger is the only writer of point balances. Every change appends
// an immutable entry and updates the balance in the same transaction, keyed
// by a caller supplied idempotency key.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/infra/metrics"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/balances"
	pgbalances "github.com/fastprodman/pointsarena/internal/repos/balances/postgres"
	entries "github.com/fastprodman/pointsarena/internal/repos/ledger"
	pgentries "github.com/fastprodman/pointsarena/internal/repos/ledger/postgres"
)

type direction int

const (
	credit direction = 1
	debit  direction = -1
)

func (d direction) String() string {
	if d == credit {
		return "earn"
	}

	return "spend"
}

type Service struct {
	db        *sql.DB
	balances  balances.Balances
	entries   entries.Ledger
	txTimeout time.Duration
	metrics   *metrics.Metrics
	newID     func() uuid.UUID
}

type Option func(*Service)

// WithTxTimeout bounds every public operation's transaction.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRepos replaces the postgres repositories, e.g. with test doubles.
func WithRepos(b balances.Balances, e entries.Ledger) Option {
	return func(s *Service) {
		s.balances = b
		s.entries = e
	}
}

func New(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		balances: pgbalances.New(db),
		entries:  pgentries.New(db),
		newID:    uuid.New,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Earn credits op.Amount in its own transaction.
func (s *Service) Earn(ctx context.Context, op Operation) (Result, error) {
	return s.public(ctx, credit, op)
}

// Spend debits op.Amount in its own transaction. It never takes a balance
// below zero.
func (s *Service) Spend(ctx context.Context, op Operation) (Result, error) {
	return s.public(ctx, debit, op)
}

// EarnTx credits op.Amount inside the caller's transaction. The amount is
// not capped by MaxAmount.
func (s *Service) EarnTx(ctx context.Context, tx *sql.Tx, op Operation) (Result, error) {
	return s.internal(ctx, tx, credit, op)
}

// SpendTx debits op.Amount inside the caller's transaction.
func (s *Service) SpendTx(ctx context.Context, tx *sql.Tx, op Operation) (Result, error) {
	return s.internal(ctx, tx, debit, op)
}

func (s *Service) public(ctx context.Context, dir direction, op Operation) (Result, error) {
	op, err := normalize(op, true)
	if err != nil {
		s.record(dir, Result{}, err)
		return Result{}, err
	}

	var res Result

	attempt := func() error {
		return pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
			var e error

			res, e = s.apply(ctx, tx, dir, op)

			return e
		})
	}

	err = attempt()
	if errors.Is(err, ErrConcurrentWrite) {
		slog.DebugContext(ctx, "retrying after concurrent idempotency key write",
			"account_id", op.AccountID, "idempotency_key", op.IdempotencyKey)

		err = attempt()
	}

	s.record(dir, res, err)

	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", dir, err)
	}

	return res, nil
}

func (s *Service) internal(ctx context.Context, tx *sql.Tx, dir direction, op Operation) (Result, error) {
	op, err := normalize(op, false)
	if err != nil {
		s.record(dir, Result{}, err)
		return Result{}, err
	}

	res, err := s.apply(ctx, tx, dir, op)
	s.record(dir, res, err)

	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", dir, err)
	}

	return res, nil
}

// apply runs: idempotency lookup, row lock, lookup again under the lock,
// balance check, balance update, entry append.
func (s *Service) apply(ctx context.Context, tx *sql.Tx, dir direction, op Operation) (Result, error) {
	delta := int64(dir) * op.Amount

	res, found, err := s.replay(ctx, tx, op, delta)
	if err != nil || found {
		return res, err
	}

	if dir == credit {
		err = s.balances.Ensure(ctx, tx, op.AccountID)
		if err != nil {
			return Result{}, fmt.Errorf("ensure balance: %w", err)
		}
	}

	balance, err := s.balances.LockAndGet(ctx, tx, op.AccountID)
	if err != nil {
		if errors.Is(err, balances.ErrNotFound) {
			return Result{}, ErrInsufficientFunds
		}

		return Result{}, fmt.Errorf("lock balance: %w", err)
	}

	// A writer holding the lock before us may have committed this key.
	res, found, err = s.replay(ctx, tx, op, delta)
	if err != nil || found {
		return res, err
	}

	var after int64

	switch dir {
	case credit:
		if balance > math.MaxInt64-op.Amount {
			return Result{}, fmt.Errorf("%w: balance would overflow", ErrValidation)
		}

		after, err = s.balances.Increase(ctx, tx, op.AccountID, op.Amount)
	case debit:
		if balance < op.Amount {
			return Result{}, ErrInsufficientFunds
		}

		after, err = s.balances.Decrease(ctx, tx, op.AccountID, op.Amount)
	}

	if err != nil {
		if errors.Is(err, balances.ErrInsufficientFunds) {
			return Result{}, ErrInsufficientFunds
		}

		return Result{}, fmt.Errorf("update balance: %w", err)
	}

	e := entries.Entry{
		ID:             s.newID(),
		AccountID:      op.AccountID,
		Delta:          delta,
		BalanceAfter:   after,
		Reason:         string(op.Reason),
		RefType:        string(op.RefType),
		RefID:          op.RefID,
		IdempotencyKey: op.IdempotencyKey,
	}

	err = s.entries.Insert(ctx, tx, &e)
	if err != nil {
		if errors.Is(err, entries.ErrDuplicateKey) {
			return Result{}, ErrConcurrentWrite
		}

		return Result{}, fmt.Errorf("append entry: %w", err)
	}

	return Result{Balance: after, EntryID: e.ID}, nil
}

// replay returns the recorded result when the key was already applied with
// the same account and delta.
func (s *Service) replay(ctx context.Context, tx *sql.Tx, op Operation, delta int64) (Result, bool, error) {
	e, err := s.entries.GetByIdempotencyKey(ctx, tx, op.IdempotencyKey)
	if err != nil {
		if errors.Is(err, entries.ErrNotFound) {
			return Result{}, false, nil
		}

		return Result{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	if e.AccountID != op.AccountID || e.Delta != delta {
		return Result{}, false, fmt.Errorf("%w: key %q", ErrIdempotencyConflict, op.IdempotencyKey)
	}

	return Result{Balance: e.BalanceAfter, EntryID: e.ID, Replayed: true}, true, nil
}

// GetBalance returns the account balance; unknown accounts have zero.
func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountId required", ErrValidation)
	}

	balance, err := s.balances.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, balances.ErrNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// GetLedger returns the newest entries of an account first. A non-positive
// limit means DefaultLedgerLimit; larger limits are capped at MaxLedgerLimit.
func (s *Service) GetLedger(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountId required", ErrValidation)
	}

	switch {
	case limit <= 0:
		limit = DefaultLedgerLimit
	case limit > MaxLedgerLimit:
		limit = MaxLedgerLimit
	}

	out, err := s.entries.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	return out, nil
}

func (s *Service) record(dir direction, res Result, err error) {
	var outcome string

	switch {
	case err == nil && res.Replayed:
		outcome = "replayed"
	case err == nil:
		outcome = "ok"
	case errors.Is(err, ErrValidation):
		outcome = "validation"
	case errors.Is(err, ErrInsufficientFunds):
		outcome = "insufficient_funds"
	case errors.Is(err, ErrIdempotencyConflict):
		outcome = "idempotency_conflict"
	case errors.Is(err, ErrConcurrentWrite):
		outcome = "concurrent_write"
	default:
		outcome = "error"
	}

	s.metrics.LedgerOp(dir.String(), outcome)
}

func normalize(op Operation, public bool) (Operation, error) {
	op.AccountID = strings.TrimSpace(op.AccountID)
	op.IdempotencyKey = strings.TrimSpace(op.IdempotencyKey)

	if op.RefType == "" {
		op.RefType = RefEtc
	}

	switch {
	case op.AccountID == "":
		return op, fmt.Errorf("%w: accountId required", ErrValidation)
	case len(op.AccountID) > maxAccountLength:
		return op, fmt.Errorf("%w: accountId longer than %d", ErrValidation, maxAccountLength)
	case op.IdempotencyKey == "":
		return op, fmt.Errorf("%w: idempotency key required", ErrValidation)
	case len(op.IdempotencyKey) > maxKeyLength:
		return op, fmt.Errorf("%w: idempotency key longer than %d", ErrValidation, maxKeyLength)
	case op.Amount <= 0:
		return op, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case public && op.Amount > MaxAmount:
		return op, fmt.Errorf("%w: amount exceeds %d", ErrValidation, MaxAmount)
	case public && !op.Reason.Valid():
		return op, fmt.Errorf("%w: unknown reason %q", ErrValidation, op.Reason)
	case !op.Reason.WellFormed():
		return op, fmt.Errorf("%w: malformed reason %q", ErrValidation, op.Reason)
	case !op.RefType.Valid():
		return op, fmt.Errorf("%w: unknown refType %q", ErrValidation, op.RefType)
	}

	return op, nil
}
