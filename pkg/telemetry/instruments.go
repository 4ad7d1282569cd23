package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are the heat exchanger OTel metrics recorded by the monitor.
// They resolve against the global meter provider, so they are no-ops until
// InitProviders installs a real one.
type Instruments struct {
	temperature  metric.Float64Gauge
	efficiency   metric.Float64Gauge
	cycles       metric.Int64Counter
	readFailures metric.Int64Counter
}

// NewInstruments creates the monitor instruments on the named meter
func NewInstruments(meterName string) (*Instruments, error) {
	meter := otel.Meter(meterName)

	temperature, err := meter.Float64Gauge("heat_exchanger.temperature",
		metric.WithUnit("Cel"),
		metric.WithDescription("Last temperature read per sensor"))
	if err != nil {
		return nil, err
	}
	efficiency, err := meter.Float64Gauge("heat_exchanger.efficiency",
		metric.WithUnit("%"),
		metric.WithDescription("Heat exchanger effectiveness"))
	if err != nil {
		return nil, err
	}
	cycles, err := meter.Int64Counter("heat_exchanger.cycles",
		metric.WithDescription("Completed acquisition cycles"))
	if err != nil {
		return nil, err
	}
	readFailures, err := meter.Int64Counter("heat_exchanger.missing_readings",
		metric.WithDescription("Mapped sensors absent from a cycle's readings"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		temperature:  temperature,
		efficiency:   efficiency,
		cycles:       cycles,
		readFailures: readFailures,
	}, nil
}

// RecordTemperature records one sensor value
func (i *Instruments) RecordTemperature(ctx context.Context, sensor string, celsius float64) {
	if i == nil {
		return
	}
	i.temperature.Record(ctx, celsius, metric.WithAttributes(attribute.String("sensor", sensor)))
}

// RecordEfficiency records the efficiency of a cycle
func (i *Instruments) RecordEfficiency(ctx context.Context, percent float64) {
	if i == nil {
		return
	}
	i.efficiency.Record(ctx, percent)
}

// RecordCycle counts a completed cycle and the sensors missing from it
func (i *Instruments) RecordCycle(ctx context.Context, missing int) {
	if i == nil {
		return
	}
	i.cycles.Add(ctx, 1)
	if missing > 0 {
		i.readFailures.Add(ctx, int64(missing))
	}
}
