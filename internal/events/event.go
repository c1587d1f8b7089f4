// Package events carries round and bet notifications from the round engine
// to live subscribers. Delivery is push-only and best effort: there is no
// replay, and a slow subscriber loses events instead of slowing the engine.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	RoundCreated   Type = "round.created"
	RoundResolved  Type = "round.resolved"
	RoundSettled   Type = "round.settled"
	RoundCancelled Type = "round.cancelled"
	BetPlaced      Type = "bet.placed"
	BetSettled     Type = "bet.settled"
)

type Event struct {
	Type      Type            `json:"type"`
	RoundID   uuid.UUID       `json:"roundId"`
	GameType  string          `json:"gameType"`
	AccountID string          `json:"accountId,omitempty"`
	BetID     string          `json:"betId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// New builds an event stamped with the current time. payload is marshalled
// to JSON; a nil payload is omitted.
func New(t Type, roundID uuid.UUID, gameType string, payload any) (Event, error) {
	e := Event{Type: t, RoundID: roundID, GameType: gameType, At: time.Now().UTC()}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}

		e.Payload = raw
	}

	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
