package rounds

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
	"github.com/fastprodman/pointsarena/pkg/provablyfair"
)

// LockAndResolve closes an OPEN round to new bets, draws with the withheld
// seed and stores the outcome. The returned round reveals its seed.
func (s *Service) LockAndResolve(ctx context.Context, id uuid.UUID) (Round, error) {
	var resolved Round

	err := pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
		locked, err := s.rounds.Transition(ctx, tx, id, roundstore.StatusLocked, roundstore.StatusOpen)
		if err != nil {
			if errors.Is(err, roundstore.ErrStatusMismatch) {
				return stateError(id, locked.Status, roundstore.StatusOpen)
			}

			return mapRoundErr(err)
		}

		game, cfg, err := s.gameOf(locked)
		if err != nil {
			return err
		}

		seed, err := s.rounds.GetServerSeed(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("read server seed: %w", err)
		}

		result, err := game.Resolve(cfg, provablyfair.Draw(seed, locked.ClientSeed, locked.Nonce))
		if err != nil {
			return fmt.Errorf("resolve round: %w", err)
		}

		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}

		resolved, err = s.rounds.Resolve(ctx, tx, id, raw)
		if err != nil {
			if errors.Is(err, roundstore.ErrStatusMismatch) {
				return stateError(id, resolved.Status, roundstore.StatusLocked)
			}

			return mapRoundErr(err)
		}

		return nil
	})
	if err != nil {
		return Round{}, fmt.Errorf("lock and resolve: %w", err)
	}

	s.metrics.RoundTransition(resolved.GameType, string(roundstore.StatusLocked))
	s.metrics.RoundTransition(resolved.GameType, string(resolved.Status))
	slog.InfoContext(ctx, "round resolved",
		"round_id", resolved.ID, "game", resolved.GameType, "result", string(resolved.Result))

	s.emit(ctx, resolved, events.RoundResolved, nil, map[string]any{
		"serverSeed":     resolved.ServerSeed,
		"serverSeedHash": resolved.ServerSeedHash,
		"clientSeed":     resolved.ClientSeed,
		"nonce":          resolved.Nonce,
		"result":         resolved.Result,
	})

	return resolved, nil
}

// Verify recomputes the commitment and the outcome of a revealed round from
// its public inputs.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (Verification, error) {
	round, err := s.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}

	if !round.Status.Revealed() {
		return Verification{}, stateError(id, round.Status, roundstore.StatusResolved, roundstore.StatusSettled)
	}

	game, cfg, err := s.gameOf(round)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{
		RoundID:        round.ID,
		GameType:       round.GameType,
		ServerSeed:     round.ServerSeed,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     round.ClientSeed,
		Nonce:          round.Nonce,
		StoredResult:   round.Result,
		HashMatches:    provablyfair.Verify(round.ServerSeed, round.ServerSeedHash),
		Draw:           provablyfair.Draw(round.ServerSeed, round.ClientSeed, round.Nonce),
	}

	recomputed, err := game.Resolve(cfg, v.Draw)
	if err != nil {
		return Verification{}, fmt.Errorf("recompute result: %w", err)
	}

	v.RecomputedResult, err = json.Marshal(recomputed)
	if err != nil {
		return Verification{}, fmt.Errorf("encode result: %w", err)
	}

	v.ResultMatches, err = sameResult(game, round.Result, v.RecomputedResult)
	if err != nil {
		return Verification{}, err
	}

	return v, nil
}

// sameResult compares results after a decode/encode pass so storage
// formatting does not matter.
func sameResult(game games.Game, stored, recomputed json.RawMessage) (bool, error) {
	if len(stored) == 0 {
		return false, nil
	}

	decoded, err := game.DecodeResult(stored)
	if err != nil {
		return false, fmt.Errorf("decode stored result: %w", err)
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return false, fmt.Errorf("encode stored result: %w", err)
	}

	return bytes.Equal(canonical, recomputed), nil
}
