package bets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/infra/pgtestutil"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
)

func seedRound(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()

	_, err := db.Exec(`
		INSERT INTO game_rounds (id, game_type, status, config, server_seed, server_seed_hash, client_seed, nonce)
		VALUES ($1, 'RACE', 'OPEN', '{}', 's', 'h', 'c', 1)
	`, id)
	if err != nil {
		t.Fatalf("seed round: %v", err)
	}

	return id
}

func newBet(roundID uuid.UUID, account, key string) bets.Bet {
	return bets.Bet{
		ID:             uuid.New(),
		RoundID:        roundID,
		AccountID:      account,
		Amount:         100,
		Choice:         json.RawMessage(`{"horseId":2}`),
		IdempotencyKey: key,
	}
}

func withTx(t *testing.T, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = fn(ctx, tx)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func TestBets_Insert(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	roundID := seedRound(t, db)

	first := newBet(roundID, "alice", "k-1")

	err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error { return repo.Insert(ctx, tx, &first) })
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.Status != bets.StatusPlaced || first.CreatedAt.IsZero() {
		t.Fatalf("insert did not fill status/created_at: %+v", first)
	}

	tests := []struct {
		name    string
		bet     bets.Bet
		wantErr error
	}{
		{name: "same_account_same_round", bet: newBet(roundID, "alice", "k-2"), wantErr: bets.ErrDuplicateBet},
		{name: "reused_key", bet: newBet(roundID, "bob", "k-1"), wantErr: bets.ErrDuplicateKey},
		{name: "other_account", bet: newBet(roundID, "bob", "k-3")},
	}

	for _, tt := range tests {
		err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error { return repo.Insert(ctx, tx, &tt.bet) })
		if tt.wantErr == nil && err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}

	err = withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		got, e := repo.GetByIdempotencyKey(ctx, tx, "k-1")
		if e != nil {
			return e
		}
		if got.ID != first.ID || got.AccountID != "alice" || got.Amount != 100 {
			t.Errorf("unexpected bet: %+v", got)
		}

		_, e = repo.GetByIdempotencyKey(ctx, tx, "nope")
		if !errors.Is(e, bets.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", e)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
}

func TestBets_MarkAndList(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	roundID := seedRound(t, db)

	a := newBet(roundID, "alice", "k-a")
	b := newBet(roundID, "bob", "k-b")
	c := newBet(roundID, "carol", "k-c")

	for _, bet := range []*bets.Bet{&a, &b, &c} {
		err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error { return repo.Insert(ctx, tx, bet) })
		if err != nil {
			t.Fatalf("insert %s: %v", bet.AccountID, err)
		}
	}

	var ok bool

	err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		var e error
		ok, e = repo.MarkSettled(ctx, tx, a.ID, 420)
		return e
	})
	if err != nil || !ok {
		t.Fatalf("settle a: ok=%v err=%v", ok, err)
	}

	// Already settled: no second transition.
	err = withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		var e error
		ok, e = repo.MarkSettled(ctx, tx, a.ID, 999)
		return e
	})
	if err != nil || ok {
		t.Fatalf("second settle must be a no-op: ok=%v err=%v", ok, err)
	}

	err = withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		var e error
		ok, e = repo.MarkCancelled(ctx, tx, b.ID)
		return e
	})
	if err != nil || !ok {
		t.Fatalf("cancel b: ok=%v err=%v", ok, err)
	}

	placed, err := repo.ListByStatus(t.Context(), roundID, bets.StatusPlaced)
	if err != nil {
		t.Fatalf("list placed: %v", err)
	}
	if len(placed) != 1 || placed[0].ID != c.ID {
		t.Fatalf("want only carol placed, got %+v", placed)
	}

	all, err := repo.ListByRound(t.Context(), roundID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 bets, got %d", len(all))
	}

	mine, err := repo.ListByRound(t.Context(), roundID, "alice")
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(mine) != 1 || mine[0].Payout != 420 || mine[0].Status != bets.StatusSettled || mine[0].SettledAt == nil {
		t.Fatalf("unexpected alice bets: %+v", mine)
	}
}
