package collector

import (
	"context"
	"math/rand/v2"

	"github.com/mjasion/balena-home/heatexchanger/devicemap"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"github.com/mjasion/balena-home/heatexchanger/sensor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("collector")

// Options control sensor construction
type Options struct {
	MockMode         bool
	DevicesDir       string
	Unit             sensor.Unit // Unit used by ReadTemperature; ReadAll is always Celsius
	RejectResetValue bool
	Rand             *rand.Rand
}

// Collector maps logical sensor names to sensor handles
type Collector struct {
	mapping  devicemap.Mapping
	sensors  map[string]sensor.Sensor // Entries whose construction failed are absent
	unit     sensor.Unit
	mockMode bool
	logger   *zap.Logger
}

// New builds one sensor handle per mapping entry. Construction failures are
// logged; the affected names will simply be missing from every ReadAll.
func New(mapping devicemap.Mapping, opts Options, logger *zap.Logger) *Collector {
	sensorOpts := sensor.Options{
		MockMode:         opts.MockMode,
		DevicesDir:       opts.DevicesDir,
		RejectResetValue: opts.RejectResetValue,
		Rand:             opts.Rand,
	}

	sensors := make(map[string]sensor.Sensor, len(mapping))
	for _, name := range mapping.Names() {
		id := mapping[name]
		s, err := sensor.New(id, sensorOpts)
		if err != nil {
			logger.Error("failed to initialize sensor",
				zap.String("sensor_name", name),
				zap.String("sensor_id", id),
				zap.Error(err))
			continue
		}
		sensors[name] = s
		logger.Debug("sensor initialized",
			zap.String("sensor_name", name),
			zap.String("sensor_id", s.ID()),
			zap.Bool("simulated", isSimulated(s)))
	}

	logger.Info("temperature collector initialized",
		zap.Int("mapped", len(mapping)),
		zap.Int("initialized", len(sensors)),
		zap.Bool("mock_mode", opts.MockMode))

	return &Collector{
		mapping:  mapping,
		sensors:  sensors,
		unit:     opts.Unit,
		mockMode: opts.MockMode,
		logger:   logger,
	}
}

func isSimulated(s sensor.Sensor) bool {
	_, ok := s.(*sensor.Simulated)
	return ok
}

// MockMode reports whether every sensor is simulated
func (c *Collector) MockMode() bool {
	return c.mockMode
}

// Names returns the mapped logical names in sorted order
func (c *Collector) Names() []string {
	return c.mapping.Names()
}

// ReadTemperature reads one sensor in the configured unit.
// ok is false when the name is unknown or the read failed.
func (c *Collector) ReadTemperature(ctx context.Context, name string) (float64, bool) {
	return c.ReadTemperatureUnit(ctx, name, c.unit)
}

// ReadTemperatureUnit reads one sensor in the given unit
func (c *Collector) ReadTemperatureUnit(ctx context.Context, name string, unit sensor.Unit) (float64, bool) {
	s, found := c.sensors[name]
	if !found {
		c.logger.Warn("sensor not found", zap.String("sensor_name", name))
		return 0, false
	}

	value, err := s.Temperature(ctx, unit)
	if err != nil {
		c.logger.Error("error reading sensor",
			zap.String("sensor_name", name),
			zap.String("sensor_id", s.ID()),
			zap.Error(err))
		return 0, false
	}

	c.logger.Info("sensor_reading",
		zap.String("sensor_name", name),
		zap.String("sensor_id", s.ID()),
		zap.Float64("temperature", value),
		zap.String("unit", unit.Symbol()))
	return value, true
}

// ReadAll reads every mapped sensor in Celsius and returns the successful
// readings. The set may be partial or empty.
func (c *Collector) ReadAll(ctx context.Context) types.ReadingSet {
	ctx, span := tracer.Start(ctx, "collector.ReadAll",
		trace.WithAttributes(attribute.Int("sensors.mapped", len(c.mapping))))
	defer span.End()

	readings := make(types.ReadingSet, len(c.mapping))
	for _, name := range c.mapping.Names() {
		if value, ok := c.ReadTemperatureUnit(ctx, name, sensor.Celsius); ok {
			readings[name] = value
		}
	}

	span.SetAttributes(attribute.Int("sensors.read", len(readings)))
	return readings
}
