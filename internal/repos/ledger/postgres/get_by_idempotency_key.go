package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/repos/ledger"
)

func (r *ledgerRepo) GetByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (ledger.Entry, error) {
	e, err := scanEntry(tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM point_ledger
		WHERE idempotency_key = $1
	`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Entry{}, ledger.ErrNotFound
		}

		return ledger.Entry{}, fmt.Errorf("get ledger entry by key: %w", err)
	}

	return e, nil
}
