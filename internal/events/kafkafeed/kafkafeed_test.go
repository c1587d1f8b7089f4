package kafkafeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/pointsarena/internal/events"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *writerMock) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_KeysByRound(t *testing.T) {
	t.Parallel()

	roundID := uuid.New()

	e, err := events.New(events.BetSettled, roundID, "RACE", map[string]int64{"payout": 850})
	require.NoError(t, err)

	e.AccountID = "alice"

	w := new(writerMock)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != roundID.String() {
			return false
		}

		var got events.Event
		if json.Unmarshal(msgs[0].Value, &got) != nil {
			return false
		}

		return got.Type == events.BetSettled && got.AccountID == "alice"
	})).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	p := NewPublisher(w)

	require.NoError(t, p.Publish(t.Context(), e))
	require.NoError(t, p.Close())

	w.AssertExpectations(t)
}

func TestPublisher_WrapsWriteError(t *testing.T) {
	t.Parallel()

	errBroker := errors.New("leader not available")

	w := new(writerMock)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errBroker)

	e, err := events.New(events.RoundCreated, uuid.New(), "BUSTA", nil)
	require.NoError(t, err)

	err = NewPublisher(w).Publish(t.Context(), e)
	require.ErrorIs(t, err, errBroker)
	assert.Contains(t, err.Error(), "kafka write")
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	w := NewWriter([]string{"k1:9092", "k2:9092"}, "arena.rounds")

	assert.Equal(t, "arena.rounds", w.Topic)
	assert.Contains(t, w.Addr.String(), "k1:9092")
	assert.Contains(t, w.Addr.String(), "k2:9092")
	assert.True(t, w.Async, "publishing must not wait for the broker")
	require.NotNil(t, w.Completion)

	// Completion tolerates both outcomes.
	w.Completion([]kafka.Message{{Key: []byte("r")}}, nil)
	w.Completion([]kafka.Message{{Key: []byte("r")}}, errors.New("broker down"))
}
