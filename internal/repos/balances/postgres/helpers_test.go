package balances

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func seedBalance(t *testing.T, db *sql.DB, accountID string, balance int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO point_balances (account_id, balance) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = EXCLUDED.balance
	`, accountID, balance)
	if err != nil {
		t.Fatalf("seed balance(%s): %v", accountID, err)
	}
}

func readBalance(t *testing.T, db *sql.DB, accountID string) int64 {
	t.Helper()

	var b int64

	err := db.QueryRow(`SELECT balance FROM point_balances WHERE account_id = $1`, accountID).Scan(&b)
	if err != nil {
		t.Fatalf("read balance(%s): %v", accountID, err)
	}

	return b
}

func inTx(t *testing.T, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
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

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	return nil
}
