package bets

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/repos/bets"
)

func (r *betsRepo) ListByStatus(ctx context.Context, roundID uuid.UUID, status bets.Status) ([]bets.Bet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+betColumns+`
		FROM game_bets
		WHERE round_id = $1
		  AND status = $2
		ORDER BY created_at, id
	`, roundID, status)
	if err != nil {
		return nil, fmt.Errorf("list bets by status: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	out, err := scanBets(rows)
	if err != nil {
		return nil, fmt.Errorf("scan bets: %w", err)
	}

	return out, nil
}

func (r *betsRepo) ListByRound(ctx context.Context, roundID uuid.UUID, accountID string) ([]bets.Bet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+betColumns+`
		FROM game_bets
		WHERE round_id = $1
		  AND ($2 = '' OR account_id = $2)
		ORDER BY created_at, id
	`, roundID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	out, err := scanBets(rows)
	if err != nil {
		return nil, fmt.Errorf("scan bets: %w", err)
	}

	return out, nil
}
