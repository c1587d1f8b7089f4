package ledger

import (
	"regexp"

	"github.com/google/uuid"

	entries "github.com/fastprodman/pointsarena/internal/repos/ledger"
)

// MaxAmount bounds a single public earn or spend.
const MaxAmount int64 = 2147483647

const (
	DefaultLedgerLimit = 20
	MaxLedgerLimit     = 100

	maxKeyLength     = 255
	maxAccountLength = 128
)

// Reason labels a ledger entry. Public earn and spend accept only the
// reasons below; internal operations also take the reasons games declare,
// such as "RACE_PAYOUT".
type Reason string

const (
	ReasonEarn        Reason = "EARN"
	ReasonSpend       Reason = "SPEND"
	ReasonAdminAdjust Reason = "ADMIN_ADJUST"
	ReasonEntryFee    Reason = "ENTRY_FEE"
	ReasonEtc         Reason = "ETC"
)

var knownReasons = map[Reason]struct{}{
	ReasonEarn: {}, ReasonSpend: {}, ReasonAdminAdjust: {}, ReasonEntryFee: {},
	ReasonEtc: {},
}

var reasonPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// Valid reports whether r may be used by a public earn or spend.
func (r Reason) Valid() bool {
	_, ok := knownReasons[r]
	return ok
}

// WellFormed reports whether r is an upper snake case code of at most 64
// characters.
func (r Reason) WellFormed() bool {
	return reasonPattern.MatchString(string(r))
}

type RefType string

const (
	RefGame     RefType = "GAME"
	RefAdmin    RefType = "ADMIN"
	RefTransfer RefType = "TRANSFER"
	RefEtc      RefType = "ETC"
)

func (r RefType) Valid() bool {
	switch r {
	case RefGame, RefAdmin, RefTransfer, RefEtc:
		return true
	default:
		return false
	}
}

// Operation is one earn or spend request. Amount is always positive; the
// direction comes from the method called.
type Operation struct {
	AccountID      string
	Amount         int64
	Reason         Reason
	RefType        RefType // defaults to RefEtc
	RefID          string
	IdempotencyKey string
}

// Result is the outcome of an applied or replayed operation.
type Result struct {
	Balance  int64
	EntryID  uuid.UUID
	Replayed bool
}

type Entry = entries.Entry
