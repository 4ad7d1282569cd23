package metrics

import (
	"context"
	"sort"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"github.com/prometheus/prometheus/prompb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Metric names written by the heat exchanger builders
const (
	TemperatureMetric = "heat_exchanger_temperature_celsius"
	EfficiencyMetric  = "heat_exchanger_efficiency_percent"
)

// BuildTemperatureTimeSeries builds one series per sensor, labelled with the
// logical sensor name
func BuildTemperatureTimeSeries(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
	_, span := tracer.Start(ctx, "metrics.BuildTemperatureTimeSeries")
	defer span.End()

	samples := make(map[string][]prompb.Sample)
	for _, r := range readings {
		if r.Type != types.ReadingTypeTemperature || r.Temperature == nil {
			continue
		}
		samples[r.Temperature.SensorName] = append(samples[r.Temperature.SensorName], prompb.Sample{
			Value:     r.Temperature.TemperatureCelsius,
			Timestamp: r.Temperature.Timestamp.UnixMilli(),
		})
	}

	// Deterministic series order for identical input
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)

	timeSeries := make([]prompb.TimeSeries, 0, len(names))
	for _, name := range names {
		timeSeries = append(timeSeries, prompb.TimeSeries{
			Labels: []prompb.Label{
				{Name: "__name__", Value: TemperatureMetric},
				{Name: "sensor", Value: name},
			},
			Samples: samples[name],
		})
	}

	span.SetAttributes(attribute.Int("metrics.temperature_time_series_count", len(timeSeries)))
	span.SetStatus(codes.Ok, "temperature time series built")
	return timeSeries, nil
}

// BuildEfficiencyTimeSeries builds the single efficiency series
func BuildEfficiencyTimeSeries(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
	_, span := tracer.Start(ctx, "metrics.BuildEfficiencyTimeSeries")
	defer span.End()

	var samples []prompb.Sample
	for _, r := range readings {
		if r.Type != types.ReadingTypeEfficiency || r.Efficiency == nil {
			continue
		}
		samples = append(samples, prompb.Sample{
			Value:     r.Efficiency.Percent,
			Timestamp: r.Efficiency.Timestamp.UnixMilli(),
		})
	}

	if len(samples) == 0 {
		span.SetStatus(codes.Ok, "no efficiency readings")
		return nil, nil
	}

	span.SetStatus(codes.Ok, "efficiency time series built")
	return []prompb.TimeSeries{{
		Labels:  []prompb.Label{{Name: "__name__", Value: EfficiencyMetric}},
		Samples: samples,
	}}, nil
}

// BuildHeatExchangerTimeSeries combines the temperature and efficiency builders
var BuildHeatExchangerTimeSeries = CombineBuilders(BuildTemperatureTimeSeries, BuildEfficiencyTimeSeries)

// CombineBuilders concatenates the output of several builders
func CombineBuilders(builders ...TimeSeriesBuilder) TimeSeriesBuilder {
	return func(ctx context.Context, readings []*types.Reading) ([]prompb.TimeSeries, error) {
		var all []prompb.TimeSeries
		for _, builder := range builders {
			if builder == nil {
				continue
			}
			ts, err := builder(ctx, readings)
			if err != nil {
				return nil, err
			}
			all = append(all, ts...)
		}
		return all, nil
	}
}
