package games

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Busta is a crash game: the round produces a bust multiplier and every bet
// whose auto-cashout threshold is at or below it pays amount*threshold.
type Busta struct{}

var _ Game = Busta{}

type BustaConfig struct {
	HouseEdge     decimal.Decimal `json:"houseEdge"`
	MinMultiplier decimal.Decimal `json:"minMultiplier"`
	MaxMultiplier decimal.Decimal `json:"maxMultiplier"`
}

func (BustaConfig) Game() Type { return TypeBusta }

type BustaChoice struct {
	AutoCashout decimal.Decimal `json:"autoCashout"`
}

func (BustaChoice) Game() Type { return TypeBusta }

type BustaResult struct {
	BustMultiplier decimal.Decimal `json:"bustMultiplier"`
}

func (BustaResult) Game() Type { return TypeBusta }

var one = decimal.NewFromInt(1)

func (c BustaConfig) validate() error {
	if c.HouseEdge.IsNegative() || c.HouseEdge.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: houseEdge %s out of [0,1)", ErrInvalidConfig, c.HouseEdge)
	}

	if c.MinMultiplier.LessThan(one) {
		return fmt.Errorf("%w: minMultiplier %s below 1", ErrInvalidConfig, c.MinMultiplier)
	}

	if c.MaxMultiplier.LessThan(c.MinMultiplier) {
		return fmt.Errorf("%w: maxMultiplier %s below minMultiplier %s", ErrInvalidConfig, c.MaxMultiplier, c.MinMultiplier)
	}

	return nil
}

func (Busta) Type() Type { return TypeBusta }

func (Busta) LedgerReasons() LedgerReasons { return reasonsOf(TypeBusta) }

func (Busta) DefaultConfig() Config {
	return BustaConfig{
		HouseEdge:     decimal.RequireFromString("0.01"),
		MinMultiplier: decimal.RequireFromString("1.01"),
		MaxMultiplier: decimal.NewFromInt(1000),
	}
}

func (Busta) DecodeConfig(raw json.RawMessage) (Config, error) {
	var c BustaConfig

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

func (Busta) DecodeChoice(raw json.RawMessage, cfg Config) (Choice, error) {
	c, err := payloadAs[BustaConfig](cfg)
	if err != nil {
		return nil, err
	}

	var in struct {
		AutoCashout *decimal.Decimal `json:"autoCashout"`
	}

	err = decodeStrict(raw, &in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChoice, err)
	}

	if in.AutoCashout == nil {
		return nil, fmt.Errorf("%w: autoCashout required", ErrInvalidChoice)
	}

	ac := *in.AutoCashout
	if ac.LessThan(c.MinMultiplier) || ac.GreaterThan(c.MaxMultiplier) {
		return nil, fmt.Errorf("%w: autoCashout %s out of [%s,%s]",
			ErrInvalidChoice, ac, c.MinMultiplier, c.MaxMultiplier)
	}

	return BustaChoice{AutoCashout: ac}, nil
}

func (Busta) DecodeResult(raw json.RawMessage) (Result, error) {
	var r BustaResult

	err := decodeStrict(raw, &r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	return r, nil
}

// Resolve computes (1 - houseEdge) / (1 - draw), floored to two decimals and
// clamped to at least 1.00.
func (Busta) Resolve(cfg Config, draw float64) (Result, error) {
	c, err := payloadAs[BustaConfig](cfg)
	if err != nil {
		return nil, err
	}

	err = checkDraw(draw)
	if err != nil {
		return nil, err
	}

	edge := c.HouseEdge.InexactFloat64()
	raw := (1 - edge) / (1 - draw)

	m := decimal.NewFromFloat(raw).Truncate(2)
	if m.LessThan(one) {
		m = one
	}

	return BustaResult{BustMultiplier: m.Truncate(2)}, nil
}

func (Busta) Payout(amount int64, choice Choice, result Result, _ Config) (int64, error) {
	ch, err := payloadAs[BustaChoice](choice)
	if err != nil {
		return 0, err
	}

	res, err := payloadAs[BustaResult](result)
	if err != nil {
		return 0, err
	}

	if ch.AutoCashout.GreaterThan(res.BustMultiplier) {
		return 0, nil
	}

	return floorPayout(amount, ch.AutoCashout)
}
