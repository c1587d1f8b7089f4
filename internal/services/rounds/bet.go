package rounds

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
)

const maxKeyLength = 200

// PlaceBet debits the stake and records the bet in one transaction. The
// round row is share-locked so it cannot leave OPEN while the bet is
// written. Repeating a call with the same idempotency key returns the bet
// already recorded.
func (s *Service) PlaceBet(ctx context.Context, in PlaceBetInput) (PlaceBetResult, error) {
	in, err := normalizeBet(in)
	if err != nil {
		return PlaceBetResult{}, err
	}

	var (
		res   PlaceBetResult
		round Round
	)

	attempt := func() error {
		return pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
			var e error

			res, round, e = s.placeBet(ctx, tx, in)

			return e
		})
	}

	err = attempt()
	if errors.Is(err, errConcurrentBet) || errors.Is(err, ledger.ErrConcurrentWrite) {
		slog.DebugContext(ctx, "retrying bet after concurrent write",
			"round_id", in.RoundID, "idempotency_key", in.IdempotencyKey)

		err = attempt()
	}

	if err != nil {
		return PlaceBetResult{}, fmt.Errorf("place bet: %w", err)
	}

	if !res.Replayed {
		s.metrics.BetPlaced(round.GameType)
		slog.InfoContext(ctx, "bet placed",
			"round_id", round.ID, "bet_id", res.Bet.ID, "account_id", res.Bet.AccountID, "amount", res.Bet.Amount)

		s.emit(ctx, round, events.BetPlaced, &res.Bet, map[string]any{
			"amount": res.Bet.Amount,
			"choice": res.Bet.Choice,
		})
	}

	return res, nil
}

func (s *Service) placeBet(ctx context.Context, tx *sql.Tx, in PlaceBetInput) (PlaceBetResult, Round, error) {
	existing, err := s.bets.GetByIdempotencyKey(ctx, tx, in.IdempotencyKey)
	switch {
	case err == nil:
		return s.replayBet(ctx, tx, in, existing)
	case !errors.Is(err, bets.ErrNotFound):
		return PlaceBetResult{}, Round{}, fmt.Errorf("bet idempotency lookup: %w", err)
	}

	round, err := s.rounds.GetForShare(ctx, tx, in.RoundID)
	if err != nil {
		return PlaceBetResult{}, Round{}, mapRoundErr(err)
	}

	if round.Status != roundstore.StatusOpen {
		return PlaceBetResult{}, Round{}, stateError(round.ID, round.Status, roundstore.StatusOpen)
	}

	game, cfg, err := s.gameOf(round)
	if err != nil {
		return PlaceBetResult{}, Round{}, err
	}

	choice, err := game.DecodeChoice(in.Choice, cfg)
	if err != nil {
		return PlaceBetResult{}, Round{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	choiceJSON, err := json.Marshal(choice)
	if err != nil {
		return PlaceBetResult{}, Round{}, fmt.Errorf("encode choice: %w", err)
	}

	spent, err := s.ledger.SpendTx(ctx, tx, ledger.Operation{
		AccountID:      in.AccountID,
		Amount:         in.Amount,
		Reason:         reasonsOf(game).bet,
		RefType:        ledger.RefGame,
		RefID:          round.ID.String(),
		IdempotencyKey: betKey(in.IdempotencyKey),
	})
	if err != nil {
		return PlaceBetResult{}, Round{}, err
	}

	// A concurrent call with the same key committed while we waited for the
	// balance lock. Without a bet row the stake key belongs to something else.
	if spent.Replayed {
		existing, err := s.bets.GetByIdempotencyKey(ctx, tx, in.IdempotencyKey)
		if err == nil {
			return s.replayBet(ctx, tx, in, existing)
		}

		if !errors.Is(err, bets.ErrNotFound) {
			return PlaceBetResult{}, Round{}, fmt.Errorf("bet idempotency lookup: %w", err)
		}

		return PlaceBetResult{}, Round{}, fmt.Errorf("%w: stake key %q already used", ErrBetKeyConflict, in.IdempotencyKey)
	}

	bet := Bet{
		ID:             s.newID(),
		RoundID:        round.ID,
		AccountID:      in.AccountID,
		Amount:         in.Amount,
		Choice:         choiceJSON,
		IdempotencyKey: in.IdempotencyKey,
	}

	err = s.bets.Insert(ctx, tx, &bet)
	if err != nil {
		switch {
		case errors.Is(err, bets.ErrDuplicateBet):
			return PlaceBetResult{}, Round{}, ErrDuplicateBet
		case errors.Is(err, bets.ErrDuplicateKey):
			return PlaceBetResult{}, Round{}, errConcurrentBet
		default:
			return PlaceBetResult{}, Round{}, fmt.Errorf("insert bet: %w", err)
		}
	}

	return PlaceBetResult{Bet: bet, Balance: spent.Balance}, round, nil
}

// replayBet answers a retried PlaceBet from the recorded bet and its stake
// entry. The round may have moved on since.
func (s *Service) replayBet(ctx context.Context, tx *sql.Tx, in PlaceBetInput, bet Bet) (PlaceBetResult, Round, error) {
	if bet.RoundID != in.RoundID || bet.AccountID != in.AccountID || bet.Amount != in.Amount {
		return PlaceBetResult{}, Round{}, fmt.Errorf("%w: key %q", ErrBetKeyConflict, in.IdempotencyKey)
	}

	round, err := s.rounds.GetForShare(ctx, tx, bet.RoundID)
	if err != nil {
		return PlaceBetResult{}, Round{}, mapRoundErr(err)
	}

	game, cfg, err := s.gameOf(round)
	if err != nil {
		return PlaceBetResult{}, Round{}, err
	}

	same, err := sameChoice(game, cfg, bet.Choice, in.Choice)
	if err != nil {
		return PlaceBetResult{}, Round{}, err
	}

	if !same {
		return PlaceBetResult{}, Round{}, fmt.Errorf("%w: key %q", ErrBetKeyConflict, in.IdempotencyKey)
	}

	spent, err := s.ledger.SpendTx(ctx, tx, ledger.Operation{
		AccountID:      bet.AccountID,
		Amount:         bet.Amount,
		Reason:         reasonsOf(game).bet,
		RefType:        ledger.RefGame,
		RefID:          round.ID.String(),
		IdempotencyKey: betKey(bet.IdempotencyKey),
	})
	if err != nil {
		return PlaceBetResult{}, Round{}, fmt.Errorf("replay stake: %w", err)
	}

	return PlaceBetResult{Bet: bet, Balance: spent.Balance, Replayed: true}, round, nil
}

// sameChoice compares a stored choice with a requested one after both went
// through the game's decoder. A request the game rejects never matches.
func sameChoice(game games.Game, cfg games.Config, stored, requested json.RawMessage) (bool, error) {
	want, err := game.DecodeChoice(requested, cfg)
	if err != nil {
		return false, nil
	}

	have, err := game.DecodeChoice(stored, cfg)
	if err != nil {
		return false, fmt.Errorf("decode stored choice: %w", err)
	}

	a, err := json.Marshal(have)
	if err != nil {
		return false, fmt.Errorf("encode stored choice: %w", err)
	}

	b, err := json.Marshal(want)
	if err != nil {
		return false, fmt.Errorf("encode choice: %w", err)
	}

	return bytes.Equal(a, b), nil
}

func normalizeBet(in PlaceBetInput) (PlaceBetInput, error) {
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	switch {
	case in.RoundID == uuid.Nil:
		return in, fmt.Errorf("%w: roundId required", ErrValidation)
	case in.AccountID == "":
		return in, fmt.Errorf("%w: accountId required", ErrValidation)
	case in.IdempotencyKey == "":
		return in, fmt.Errorf("%w: idempotency key required", ErrValidation)
	case len(in.IdempotencyKey) > maxKeyLength:
		return in, fmt.Errorf("%w: idempotency key longer than %d", ErrValidation, maxKeyLength)
	case in.Amount <= 0:
		return in, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case in.Amount > ledger.MaxAmount:
		return in, fmt.Errorf("%w: amount exceeds %d", ErrValidation, ledger.MaxAmount)
	case len(in.Choice) == 0:
		return in, fmt.Errorf("%w: choice required", ErrValidation)
	}

	return in, nil
}
