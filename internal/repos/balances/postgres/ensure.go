package balances

import (
	"context"
	"database/sql"
	"fmt"
)

// Ensure creates a zero balance row for accountID unless one exists.
func (r *balancesRepo) Ensure(ctx context.Context, tx *sql.Tx, accountID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO point_balances (account_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	if err != nil {
		return fmt.Errorf("ensure balance row: %w", err)
	}

	return nil
}
