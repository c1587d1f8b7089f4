package games

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Race is a weighted pick of one lane out of a fixed field. A bet names a
// lane; it pays amount*odds[lane] when that lane wins.
type Race struct{}

var _ Game = Race{}

type RaceConfig struct {
	Weights   []float64         `json:"weights"`
	Odds      []decimal.Decimal `json:"odds"`
	HouseEdge decimal.Decimal   `json:"houseEdge"`
}

func (RaceConfig) Game() Type { return TypeRace }

type RaceChoice struct {
	HorseID int `json:"horseId"`
}

func (RaceChoice) Game() Type { return TypeRace }

type RaceResult struct {
	WinningIndex int `json:"winningIndex"`
}

func (RaceResult) Game() Type { return TypeRace }

const weightTolerance = 1e-9

func (c RaceConfig) validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("%w: weights required", ErrInvalidConfig)
	}

	if len(c.Weights) != len(c.Odds) {
		return fmt.Errorf("%w: %d weights but %d odds", ErrInvalidConfig, len(c.Weights), len(c.Odds))
	}

	var sum float64
	for i, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight[%d]=%v", ErrInvalidConfig, i, w)
		}

		sum += w
	}

	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}

	for i, o := range c.Odds {
		if o.LessThan(one) {
			return fmt.Errorf("%w: odds[%d]=%s below 1", ErrInvalidConfig, i, o)
		}
	}

	if c.HouseEdge.IsNegative() || c.HouseEdge.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: houseEdge %s out of [0,1)", ErrInvalidConfig, c.HouseEdge)
	}

	return nil
}

func (Race) Type() Type { return TypeRace }

func (Race) LedgerReasons() LedgerReasons { return reasonsOf(TypeRace) }

func (Race) DefaultConfig() Config {
	return RaceConfig{
		Weights: []float64{0.1, 0.15, 0.2, 0.25, 0.15, 0.15},
		Odds: []decimal.Decimal{
			decimal.RequireFromString("8.5"),
			decimal.RequireFromString("5.5"),
			decimal.RequireFromString("4.2"),
			decimal.RequireFromString("3.4"),
			decimal.RequireFromString("5.5"),
			decimal.RequireFromString("5.5"),
		},
		HouseEdge: decimal.RequireFromString("0.05"),
	}
}

func (Race) DecodeConfig(raw json.RawMessage) (Config, error) {
	var c RaceConfig

	err := decodeStrict(raw, &c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	err = c.validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (Race) DecodeChoice(raw json.RawMessage, cfg Config) (Choice, error) {
	c, err := payloadAs[RaceConfig](cfg)
	if err != nil {
		return nil, err
	}

	var in struct {
		HorseID *int `json:"horseId"`
	}

	err = decodeStrict(raw, &in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChoice, err)
	}

	if in.HorseID == nil {
		return nil, fmt.Errorf("%w: horseId required", ErrInvalidChoice)
	}

	if *in.HorseID < 0 || *in.HorseID >= len(c.Odds) {
		return nil, fmt.Errorf("%w: horseId %d out of range [0,%d)", ErrInvalidChoice, *in.HorseID, len(c.Odds))
	}

	return RaceChoice{HorseID: *in.HorseID}, nil
}

func (Race) DecodeResult(raw json.RawMessage) (Result, error) {
	var r RaceResult

	err := decodeStrict(raw, &r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	return r, nil
}

// Resolve returns the first lane whose cumulative weight exceeds the draw.
// Rounding residue in the weights falls to the last lane.
func (Race) Resolve(cfg Config, draw float64) (Result, error) {
	c, err := payloadAs[RaceConfig](cfg)
	if err != nil {
		return nil, err
	}

	err = checkDraw(draw)
	if err != nil {
		return nil, err
	}

	if len(c.Weights) == 0 {
		return nil, fmt.Errorf("%w: weights required", ErrInvalidConfig)
	}

	var cumulative float64
	for i, w := range c.Weights {
		cumulative += w
		if draw < cumulative {
			return RaceResult{WinningIndex: i}, nil
		}
	}

	return RaceResult{WinningIndex: len(c.Weights) - 1}, nil
}

func (Race) Payout(amount int64, choice Choice, result Result, cfg Config) (int64, error) {
	c, err := payloadAs[RaceConfig](cfg)
	if err != nil {
		return 0, err
	}

	ch, err := payloadAs[RaceChoice](choice)
	if err != nil {
		return 0, err
	}

	res, err := payloadAs[RaceResult](result)
	if err != nil {
		return 0, err
	}

	if ch.HorseID != res.WinningIndex {
		return 0, nil
	}

	if res.WinningIndex < 0 || res.WinningIndex >= len(c.Odds) {
		return 0, fmt.Errorf("%w: winningIndex %d has no odds", ErrInvalidResult, res.WinningIndex)
	}

	return floorPayout(amount, c.Odds[res.WinningIndex])
}
