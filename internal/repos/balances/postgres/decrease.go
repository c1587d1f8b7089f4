package balances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/repos/balances"
)

// Decrease subtracts amount and returns the new balance. It never takes a
// balance below zero.
func (r *balancesRepo) Decrease(ctx context.Context, tx *sql.Tx, accountID string, amount int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		UPDATE point_balances
		SET balance = balance - $2,
		    updated_at = now()
		WHERE account_id = $1
		  AND balance >= $2
		RETURNING balance
	`, accountID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, balances.ErrInsufficientFunds
		}

		return 0, fmt.Errorf("decrease balance: %w", err)
	}

	return balance, nil
}
