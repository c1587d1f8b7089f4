package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/pointsarena/internal/infra/metrics"
)

// Sink is a named destination of a Fanout; the name labels failure metrics.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Fanout publishes every event to all sinks and joins their errors.
type Fanout struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

func NewFanout(m *metrics.Metrics, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, metrics: m}
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error

	for _, s := range f.sinks {
		err := s.Publisher.Publish(ctx, e)
		if err != nil {
			f.metrics.PublishFailure(s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	return errors.Join(errs...)
}
