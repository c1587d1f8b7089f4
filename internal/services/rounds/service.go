// Package rounds runs the lifecycle of provably-fair game rounds: commit to a
// seed, take bets against the ledger, resolve with the revealed seed and pay
// winners.
//
//	OPEN -> LOCKED -> RESOLVED -> SETTLED
//	OPEN | LOCKED -> CANCELLED
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
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
	"github.com/fastprodman/pointsarena/internal/infra/metrics"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
	pgbets "github.com/fastprodman/pointsarena/internal/repos/bets/postgres"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
	pgrounds "github.com/fastprodman/pointsarena/internal/repos/rounds/postgres"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
	"github.com/fastprodman/pointsarena/pkg/provablyfair"
)

const defaultPublishTimeout = 2 * time.Second

type Service struct {
	db         *sql.DB
	ledger     *ledger.Service
	rounds     roundstore.Rounds
	bets       bets.Bets
	registry   *games.Registry
	publisher  events.Publisher
	metrics    *metrics.Metrics
	clientSeed string
	txTimeout  time.Duration
	pubTimeout time.Duration
	nonces     *nonceSource
	newID      func() uuid.UUID
}

type Option func(*Service)

func WithRegistry(r *games.Registry) Option {
	return func(s *Service) { s.registry = r }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClientSeed sets the public client seed mixed into every new round.
func WithClientSeed(seed string) Option {
	return func(s *Service) {
		if seed != "" {
			s.clientSeed = seed
		}
	}
}

// WithTxTimeout bounds every transaction the service opens.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

// WithPublishTimeout bounds the delivery of a single event.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pubTimeout = d
		}
	}
}

// WithRepos replaces the postgres repositories, e.g. with test doubles.
func WithRepos(r roundstore.Rounds, b bets.Bets) Option {
	return func(s *Service) {
		s.rounds = r
		s.bets = b
	}
}

func New(db *sql.DB, ledgerSvc *ledger.Service, opts ...Option) *Service {
	s := &Service{
		db:         db,
		ledger:     ledgerSvc,
		rounds:     pgrounds.New(db),
		bets:       pgbets.New(db),
		registry:   games.NewDefaultRegistry(),
		publisher:  events.Nop,
		clientSeed: provablyfair.DefaultClientSeed,
		pubTimeout: defaultPublishTimeout,
		nonces:     newNonceSource(),
		newID:      uuid.New,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Games lists the game types rounds can be created for.
func (s *Service) Games() []games.Type {
	return s.registry.Types()
}

// Create opens a round of gameType. An empty or null rawConfig selects the
// game's default config. The returned round carries the seed commitment but
// never the seed itself.
func (s *Service) Create(ctx context.Context, gameType games.Type, rawConfig json.RawMessage) (Round, error) {
	game, err := s.registry.Get(gameType)
	if err != nil {
		return Round{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	cfg := game.DefaultConfig()

	trimmed := bytes.TrimSpace(rawConfig)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		cfg, err = game.DecodeConfig(trimmed)
		if err != nil {
			return Round{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Round{}, fmt.Errorf("encode config: %w", err)
	}

	commitment, err := provablyfair.NewCommitment()
	if err != nil {
		return Round{}, fmt.Errorf("new seed: %w", err)
	}

	round := Round{
		ID:             s.newID(),
		GameType:       string(game.Type()),
		Status:         roundstore.StatusOpen,
		Config:         cfgJSON,
		ServerSeed:     commitment.ServerSeed,
		ServerSeedHash: commitment.Hash,
		ClientSeed:     s.clientSeed,
		Nonce:          s.nonces.Next(),
	}

	err = pgutils.WithTxTimeout(ctx, s.db, s.txTimeout, func(tx *sql.Tx) error {
		return s.rounds.Create(ctx, tx, &round)
	})
	if err != nil {
		return Round{}, fmt.Errorf("create round: %w", err)
	}

	round.ServerSeed = ""

	s.metrics.RoundTransition(round.GameType, string(round.Status))
	slog.InfoContext(ctx, "round created",
		"round_id", round.ID, "game", round.GameType, "nonce", round.Nonce)

	s.emit(ctx, round, events.RoundCreated, nil, map[string]any{
		"serverSeedHash": round.ServerSeedHash,
		"clientSeed":     round.ClientSeed,
		"nonce":          round.Nonce,
		"config":         round.Config,
	})

	return round, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Round, error) {
	round, err := s.rounds.Get(ctx, id)
	if err != nil {
		return Round{}, mapRoundErr(err)
	}

	return round, nil
}

// GetOpenRound returns the newest OPEN round of gameType.
func (s *Service) GetOpenRound(ctx context.Context, gameType games.Type) (Round, error) {
	_, err := s.registry.Get(gameType)
	if err != nil {
		return Round{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	round, err := s.rounds.GetOpenByType(ctx, string(gameType))
	if err != nil {
		return Round{}, mapRoundErr(err)
	}

	return round, nil
}

// ListBets returns the bets of a round, only accountID's when it is set.
func (s *Service) ListBets(ctx context.Context, roundID uuid.UUID, accountID string) ([]Bet, error) {
	_, err := s.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}

	out, err := s.bets.ListByRound(ctx, roundID, strings.TrimSpace(accountID))
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}

	return out, nil
}

// gameOf returns the rule module of a stored round and its decoded config.
func (s *Service) gameOf(round Round) (games.Game, games.Config, error) {
	game, err := s.registry.Get(games.Type(round.GameType))
	if err != nil {
		return nil, nil, err
	}

	cfg, err := game.DecodeConfig(round.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("round %s: %w", round.ID, err)
	}

	return game, cfg, nil
}

// emit publishes after commit, bounded by the publish timeout even when the
// caller has gone away. Delivery failures are logged and never fail the
// operation that produced the event.
func (s *Service) emit(ctx context.Context, round Round, t events.Type, bet *Bet, payload any) {
	e, err := events.New(t, round.ID, round.GameType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "build event", "type", t, logging.Err(err))
		return
	}

	if bet != nil {
		e.AccountID = bet.AccountID
		e.BetID = bet.ID.String()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubTimeout)
	defer cancel()

	err = s.publisher.Publish(pubCtx, e)
	if err != nil {
		slog.WarnContext(ctx, "publish event",
			"type", t, "round_id", round.ID, logging.Err(err))
	}
}

func mapRoundErr(err error) error {
	if errors.Is(err, roundstore.ErrNotFound) {
		return ErrRoundNotFound
	}

	return fmt.Errorf("round store: %w", err)
}
