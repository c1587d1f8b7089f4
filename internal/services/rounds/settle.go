package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
)

// betOutcome is what one bet transaction did.
type betOutcome struct {
	applied bool
	amount  int64
}

// Settle pays every PLACED bet of a RESOLVED round, each in its own
// transaction, then marks the round SETTLED. A bet that fails to settle is
// logged and listed in the report; it stays PLACED for Reconcile.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (SettleReport, error) {
	round, err := s.Get(ctx, id)
	if err != nil {
		return SettleReport{}, err
	}

	if round.Status != roundstore.StatusResolved {
		return SettleReport{}, stateError(id, round.Status, roundstore.StatusResolved)
	}

	start := time.Now()

	report, err := s.settleBets(ctx, round)
	if err != nil {
		return report, err
	}

	settled, err := s.transition(ctx, id, roundstore.StatusSettled, roundstore.StatusResolved)
	if err != nil {
		return report, err
	}

	report.Status = settled.Status

	s.metrics.ObserveSettle(settled.GameType, time.Since(start).Seconds())
	slog.InfoContext(ctx, "round settled",
		"round_id", id, "settled", report.Settled, "skipped", report.Skipped,
		"failed", len(report.Failed), "paid", report.Paid)

	s.emit(ctx, settled, events.RoundSettled, nil, report)

	return report, nil
}

// Cancel voids an OPEN or LOCKED round and refunds every stake.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (SettleReport, error) {
	cancelled, err := s.transition(ctx, id, roundstore.StatusCancelled, roundstore.StatusOpen, roundstore.StatusLocked)
	if err != nil {
		return SettleReport{}, err
	}

	report, err := s.refundBets(ctx, cancelled)
	if err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "round cancelled",
		"round_id", id, "refunded", report.Settled, "failed", len(report.Failed), "paid", report.Paid)

	s.emit(ctx, cancelled, events.RoundCancelled, nil, report)

	return report, nil
}

// Reconcile retries the bets a previous Settle or Cancel left PLACED.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (SettleReport, error) {
	round, err := s.Get(ctx, id)
	if err != nil {
		return SettleReport{}, err
	}

	var report SettleReport

	switch round.Status {
	case roundstore.StatusSettled:
		report, err = s.settleBets(ctx, round)
	case roundstore.StatusCancelled:
		report, err = s.refundBets(ctx, round)
	default:
		return SettleReport{}, stateError(id, round.Status, roundstore.StatusSettled, roundstore.StatusCancelled)
	}

	if err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "round reconciled",
		"round_id", id, "status", round.Status, "settled", report.Settled, "failed", len(report.Failed))

	return report, nil
}

func (s *Service) settleBets(ctx context.Context, round Round) (SettleReport, error) {
	game, cfg, err := s.gameOf(round)
	if err != nil {
		return SettleReport{}, err
	}

	result, err := game.DecodeResult(round.Result)
	if err != nil {
		return SettleReport{}, fmt.Errorf("round %s: %w", round.ID, err)
	}

	reasons := reasonsOf(game)

	return s.eachPlaced(ctx, round, func(tx *sql.Tx, bet Bet) (betOutcome, error) {
		choice, err := game.DecodeChoice(bet.Choice, cfg)
		if err != nil {
			return betOutcome{}, err
		}

		payout, err := game.Payout(bet.Amount, choice, result, cfg)
		if err != nil {
			return betOutcome{}, err
		}

		ok, err := s.bets.MarkSettled(ctx, tx, bet.ID, payout)
		if err != nil || !ok {
			return betOutcome{}, err
		}

		if payout > 0 {
			_, err = s.ledger.EarnTx(ctx, tx, ledger.Operation{
				AccountID:      bet.AccountID,
				Amount:         payout,
				Reason:         reasons.payout,
				RefType:        ledger.RefGame,
				RefID:          round.ID.String(),
				IdempotencyKey: payoutKey(bet.ID),
			})
			if err != nil {
				return betOutcome{}, err
			}
		}

		return betOutcome{applied: true, amount: payout}, nil
	})
}

func (s *Service) refundBets(ctx context.Context, round Round) (SettleReport, error) {
	game, err := s.registry.Get(games.Type(round.GameType))
	if err != nil {
		return SettleReport{}, err
	}

	reasons := reasonsOf(game)

	return s.eachPlaced(ctx, round, func(tx *sql.Tx, bet Bet) (betOutcome, error) {
		ok, err := s.bets.MarkCancelled(ctx, tx, bet.ID)
		if err != nil || !ok {
			return betOutcome{}, err
		}

		_, err = s.ledger.EarnTx(ctx, tx, ledger.Operation{
			AccountID:      bet.AccountID,
			Amount:         bet.Amount,
			Reason:         reasons.refund,
			RefType:        ledger.RefGame,
			RefID:          round.ID.String(),
			IdempotencyKey: refundKey(bet.ID),
		})
		if err != nil {
			return betOutcome{}, err
		}

		return betOutcome{applied: true, amount: bet.Amount}, nil
	})
}

// eachPlaced runs fn for every PLACED bet of round in its own transaction.
// fn reports applied=false when the bet was already handled elsewhere.
func (s *Service) eachPlaced(ctx context.Context, round Round, fn func(tx *sql.Tx, bet Bet) (betOutcome, error)) (SettleReport, error) {
	report := SettleReport{RoundID: round.ID, Status: round.Status, Failed: []uuid.UUID{}}

	placed, err := s.bets.ListByStatus(ctx, round.ID, bets.StatusPlaced)
	if err != nil {
		return report, fmt.Errorf("list placed bets: %w", err)
	}

	for _, bet := range placed {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		var out betOutcome

		err := pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
			var e error

			out, e = fn(tx, bet)

			return e
		})
		if err != nil {
			report.Failed = append(report.Failed, bet.ID)

			s.metrics.SettlementFailure(round.GameType)
			slog.ErrorContext(ctx, "bet settlement failed",
				"round_id", round.ID, "bet_id", bet.ID, "account_id", bet.AccountID, logging.Err(err))

			continue
		}

		if !out.applied {
			report.Skipped++
			continue
		}

		report.Settled++
		report.Paid += out.amount

		settledBet := bet
		settledBet.Payout = out.amount

		s.emit(ctx, round, events.BetSettled, &settledBet, map[string]any{
			"amount": bet.Amount,
			"payout": out.amount,
			"status": betStatusAfter(round.Status),
		})
	}

	return report, nil
}

func betStatusAfter(roundStatus Status) BetStatus {
	if roundStatus == roundstore.StatusCancelled {
		return bets.StatusCancelled
	}

	return bets.StatusSettled
}

// transition runs one compare-and-set status change in its own transaction.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, from ...Status) (Round, error) {
	var round Round

	err := pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
		var e error

		round, e = s.rounds.Transition(ctx, tx, id, to, from...)

		return e
	})
	if err != nil {
		if errors.Is(err, roundstore.ErrStatusMismatch) {
			return Round{}, stateError(id, round.Status, from...)
		}

		return Round{}, mapRoundErr(err)
	}

	s.metrics.RoundTransition(round.GameType, string(to))

	return round, nil
}
