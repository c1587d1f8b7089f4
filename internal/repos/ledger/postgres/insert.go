package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/ledger"
)

func (r *ledgerRepo) Insert(ctx context.Context, tx *sql.Tx, e *ledger.Entry) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO point_ledger (id, account_id, delta, balance_after, reason, ref_type, ref_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.AccountID, e.Delta, e.BalanceAfter, e.Reason, e.RefType, nullString(e.RefID), e.IdempotencyKey).
		Scan(&e.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return ledger.ErrDuplicateKey
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}
