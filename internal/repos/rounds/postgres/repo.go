package rounds

import (
	"database/sql"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/repos/rounds"
)

var _ rounds.Rounds = (*roundsRepo)(nil)

type roundsRepo struct{ db *sql.DB }

func New(db *sql.DB) *roundsRepo {
	return &roundsRepo{db: db}
}

// roundColumns never exposes server_seed before the round is revealed.
const roundColumns = `id, game_type, status, config, result,
	CASE WHEN status IN ('RESOLVED', 'SETTLED') THEN server_seed ELSE '' END,
	server_seed_hash, client_seed, nonce,
	created_at, locked_at, resolved_at, settled_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(s rowScanner) (rounds.Round, error) {
	var (
		r      rounds.Round
		config []byte
		result []byte
	)

	err := s.Scan(
		&r.ID, &r.GameType, &r.Status, &config, &result,
		&r.ServerSeed, &r.ServerSeedHash, &r.ClientSeed, &r.Nonce,
		&r.CreatedAt, &r.LockedAt, &r.ResolvedAt, &r.SettledAt, &r.CancelledAt,
	)
	if err != nil {
		return rounds.Round{}, err
	}

	r.Config = config

	if result != nil {
		r.Result = result
	}

	return r, nil
}

func stampColumn(to rounds.Status) (string, error) {
	switch to {
	case rounds.StatusLocked:
		return "locked_at", nil
	case rounds.StatusResolved:
		return "resolved_at", nil
	case rounds.StatusSettled:
		return "settled_at", nil
	case rounds.StatusCancelled:
		return "cancelled_at", nil
	default:
		return "", fmt.Errorf("no transition into %s", to)
	}
}
