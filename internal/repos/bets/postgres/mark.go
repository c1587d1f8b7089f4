package bets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

func (r *betsRepo) MarkSettled(ctx context.Context, tx *sql.Tx, betID uuid.UUID, payout int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE game_bets
		SET status = 'SETTLED',
		    payout = $2,
		    settled_at = now()
		WHERE id = $1
		  AND status = 'PLACED'
	`, betID, payout)
	if err != nil {
		return false, fmt.Errorf("mark bet settled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *betsRepo) MarkCancelled(ctx context.Context, tx *sql.Tx, betID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE game_bets
		SET status = 'CANCELLED',
		    settled_at = now()
		WHERE id = $1
		  AND status = 'PLACED'
	`, betID)
	if err != nil {
		return false, fmt.Errorf("mark bet cancelled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
