package ledger

import (
	"database/sql"

	"github.com/fastprodman/pointsarena/internal/repos/ledger"
)

var _ ledger.Ledger = (*ledgerRepo)(nil)

type ledgerRepo struct{ db *sql.DB }

func New(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

const entryColumns = `id, account_id, delta, balance_after, reason, ref_type, ref_id, idempotency_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (ledger.Entry, error) {
	var (
		e     ledger.Entry
		refID sql.NullString
	)

	err := s.Scan(&e.ID, &e.AccountID, &e.Delta, &e.BalanceAfter, &e.Reason, &e.RefType, &refID, &e.IdempotencyKey, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}

	e.RefID = refID.String

	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
