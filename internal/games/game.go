// Package games holds the pure rule modules that turn a provably-fair draw
// into a round outcome and a bet into a payout.
//
// Every game owns three payload shapes (config, choice, result). They travel
// through the round engine as the Config, Choice and Result interfaces and are
// stored as JSON; the game that owns a payload is the only one that can
// decode or interpret it.
package games

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeRace  Type = "RACE"
	TypeBusta Type = "BUSTA"
)

var (
	ErrUnknownGame     = errors.New("unknown game type")
	ErrInvalidConfig   = errors.New("invalid game config")
	ErrInvalidChoice   = errors.New("invalid bet choice")
	ErrInvalidResult   = errors.New("invalid round result")
	ErrInvalidDraw     = errors.New("draw must be in [0,1)")
	ErrPayloadMismatch = errors.New("payload belongs to another game")
	ErrPayoutOverflow  = errors.New("payout overflows int64")
)

// Payload is implemented by every game-specific config, choice and result.
type Payload interface {
	Game() Type
}

type (
	Config Payload
	Choice Payload
	Result Payload
)

// Game is the capability set every rule module provides.
type Game interface {
	Type() Type

	// DefaultConfig is used when a round is created without an override.
	DefaultConfig() Config

	DecodeConfig(raw json.RawMessage) (Config, error)
	DecodeChoice(raw json.RawMessage, cfg Config) (Choice, error)
	DecodeResult(raw json.RawMessage) (Result, error)

	// Resolve maps a draw in [0,1) to the round outcome. It is deterministic.
	Resolve(cfg Config, draw float64) (Result, error)

	// Payout returns the amount credited for a bet; zero for a losing bet.
	Payout(amount int64, choice Choice, result Result, cfg Config) (int64, error)

	// LedgerReasons names the ledger entries the game's money moves under.
	LedgerReasons() LedgerReasons
}

// LedgerReasons are the ledger reason codes of one game.
type LedgerReasons struct {
	Bet    string
	Payout string
	Refund string
}

// reasonsOf derives "<TYPE>_BET", "<TYPE>_PAYOUT" and "<TYPE>_REFUND".
func reasonsOf(t Type) LedgerReasons {
	return LedgerReasons{
		Bet:    string(t) + "_BET",
		Payout: string(t) + "_PAYOUT",
		Refund: string(t) + "_REFUND",
	}
}

// ParseType normalizes user input such as "race" into a Type. It does not
// check that the type is registered.
func ParseType(s string) Type {
	return Type(strings.ToUpper(strings.TrimSpace(s)))
}

func payloadAs[T Payload](p Payload) (T, error) {
	v, ok := p.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: want %T, got %T", ErrPayloadMismatch, zero, p)
	}

	return v, nil
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}

func checkDraw(draw float64) error {
	if math.IsNaN(draw) || draw < 0 || draw >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDraw, draw)
	}

	return nil
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// floorPayout returns floor(amount * factor). Fractional points always stay
// with the house.
func floorPayout(amount int64, factor decimal.Decimal) (int64, error) {
	p := decimal.NewFromInt(amount).Mul(factor).Floor()
	if p.GreaterThan(maxInt64) {
		return 0, ErrPayoutOverflow
	}

	if p.IsNegative() {
		return 0, nil
	}

	return p.IntPart(), nil
}
