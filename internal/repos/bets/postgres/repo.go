package bets

import (
	"database/sql"

	"github.com/fastprodman/pointsarena/internal/repos/bets"
)

var _ bets.Bets = (*betsRepo)(nil)

type betsRepo struct{ db *sql.DB }

func New(db *sql.DB) *betsRepo {
	return &betsRepo{db: db}
}

const (
	betColumns = `id, round_id, account_id, amount, choice, status, payout, idempotency_key, created_at, settled_at`

	roundAccountConstraint = "game_bets_round_account_key"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(s rowScanner) (bets.Bet, error) {
	var (
		b      bets.Bet
		choice []byte
	)

	err := s.Scan(&b.ID, &b.RoundID, &b.AccountID, &b.Amount, &choice, &b.Status, &b.Payout, &b.IdempotencyKey, &b.CreatedAt, &b.SettledAt)
	if err != nil {
		return bets.Bet{}, err
	}

	b.Choice = choice

	return b, nil
}

func scanBets(rows *sql.Rows) ([]bets.Bet, error) {
	var out []bets.Bet

	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, b)
	}

	return out, rows.Err()
}
