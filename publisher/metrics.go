package publisher

import (
	"context"

	"github.com/mjasion/balena-home/heatexchanger/pkg/buffer"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
)

// MetricsSink queues readings for the Prometheus remote-write pusher
type MetricsSink struct {
	buffer *buffer.RingBuffer[*types.Reading]
}

// NewMetricsSink creates a sink feeding buf
func NewMetricsSink(buf *buffer.RingBuffer[*types.Reading]) *MetricsSink {
	return &MetricsSink{buffer: buf}
}

// Name implements Sink
func (s *MetricsSink) Name() string {
	return "prometheus"
}

// Publish implements Sink
func (s *MetricsSink) Publish(_ context.Context, msg Message) error {
	s.buffer.AddAll(types.FromReadingSet(msg.Readings(), msg.Time)...)
	return nil
}
