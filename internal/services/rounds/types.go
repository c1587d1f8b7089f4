package rounds

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/repos/bets"
	roundstore "github.com/fastprodman/pointsarena/internal/repos/rounds"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
)

type (
	Round     = roundstore.Round
	Status    = roundstore.Status
	Bet       = bets.Bet
	BetStatus = bets.Status
)

type PlaceBetInput struct {
	RoundID        uuid.UUID
	AccountID      string
	Amount         int64
	Choice         json.RawMessage
	IdempotencyKey string
}

// PlaceBetResult carries the stored bet and the balance after its stake was
// debited. Replayed is set when the key had already been used for this bet.
type PlaceBetResult struct {
	Bet      Bet
	Balance  int64
	Replayed bool
}

// SettleReport summarizes one pass over the PLACED bets of a round. For a
// cancelled round the paid amounts are refunds.
type SettleReport struct {
	RoundID uuid.UUID   `json:"roundId"`
	Status  Status      `json:"status"`
	Settled int         `json:"settled"`
	Skipped int         `json:"skipped"`
	Paid    int64       `json:"paid"`
	Failed  []uuid.UUID `json:"failed"`
}

// Verification is the fairness proof of a revealed round.
type Verification struct {
	RoundID          uuid.UUID       `json:"roundId"`
	GameType         string          `json:"gameType"`
	ServerSeed       string          `json:"serverSeed"`
	ServerSeedHash   string          `json:"serverSeedHash"`
	ClientSeed       string          `json:"clientSeed"`
	Nonce            int64           `json:"nonce"`
	Draw             float64         `json:"draw"`
	StoredResult     json.RawMessage `json:"storedResult"`
	RecomputedResult json.RawMessage `json:"recomputedResult"`
	HashMatches      bool            `json:"hashMatches"`
	ResultMatches    bool            `json:"resultMatches"`
}

func (v Verification) Valid() bool {
	return v.HashMatches && v.ResultMatches
}

type gameReasons struct {
	bet, payout, refund ledger.Reason
}

func reasonsOf(g games.Game) gameReasons {
	r := g.LedgerReasons()

	return gameReasons{
		bet:    ledger.Reason(r.Bet),
		payout: ledger.Reason(r.Payout),
		refund: ledger.Reason(r.Refund),
	}
}

// Ledger keys derived from a bet. They make settlement and refund retries
// exactly-once.
func betKey(key string) string         { return "bet:" + key }
func payoutKey(betID uuid.UUID) string { return "payout:" + betID.String() }
func refundKey(betID uuid.UUID) string { return "refund:" + betID.String() }
