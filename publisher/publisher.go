// Package publisher fans each cycle's readings out to subscriber sinks:
// websocket clients, a NATS subject and the Prometheus remote-write buffer.
package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/pkg/telemetry"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("publisher")

// Sink delivers messages to one kind of subscriber
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
}

// Publisher converts reading sets into messages and hands them to sinks
type Publisher struct {
	sinks  []Sink
	now    func() time.Time
	logger *zap.Logger
}

// New creates a publisher over the given sinks. Nil sinks are ignored.
func New(logger *zap.Logger, sinks ...Sink) *Publisher {
	p := &Publisher{now: time.Now, logger: logger}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	return p
}

// Sinks returns the names of the configured sinks
func (p *Publisher) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch publishes readings to every sink. Sets without all of T1..T4 are
// skipped. A failing sink is logged and does not stop the others.
func (p *Publisher) Dispatch(ctx context.Context, readings types.ReadingSet) {
	msg, err := NewMessage(readings, p.now())
	if err != nil {
		p.logger.Debug("skipping publish",
			zap.Int("readings", len(readings.Temperatures())),
			zap.Error(err))
		return
	}

	ctx, span := tracer.Start(ctx, "publisher.Dispatch")
	defer span.End()

	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
			telemetry.ErrorWithTrace(ctx, p.logger, "failed to publish readings",
				zap.String("sink", s.Name()),
				zap.Error(err))
			continue
		}
		p.logger.Debug("published readings", zap.String("sink", s.Name()))
	}

	span.SetAttributes(
		attribute.Int("publisher.sinks", len(p.sinks)),
		attribute.Int("publisher.failures", len(errs)))
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "one or more sinks failed")
	}
}
