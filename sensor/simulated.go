package sensor

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
)

// jitterCelsius bounds the per-read variation of a simulated sensor
const jitterCelsius = 2.0

// simulatedBases maps identifier suffixes to the base temperature of the
// heat exchanger position they stand in for
var simulatedBases = []struct {
	suffix string
	base   float64
}{
	{"32323232323232", 85.0},  // T1 hot inlet
	{"323232545454545", 45.0}, // T2 hot outlet
	{"567890123456789", 15.0}, // T3 cold inlet
	{"665656565656565", 55.0}, // T4 cold outlet
}

// SimulatedIDs returns identifiers recognised by the simulator, in T1..T4 order
func SimulatedIDs() []string {
	ids := make([]string, len(simulatedBases))
	for i, b := range simulatedBases {
		ids[i] = b.suffix
	}
	return ids
}

// Simulated stands in for a DS18B20 without hardware. Readings are a fixed
// base temperature plus uniform jitter of ±2°C.
type Simulated struct {
	id   string
	base float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated sensor. The base temperature is fixed at
// construction; rng may be nil to use the global source.
func NewSimulated(id string, rng *rand.Rand) *Simulated {
	s := &Simulated{id: id, rng: rng}
	s.base = s.baseTemperature()
	return s
}

func (s *Simulated) baseTemperature() float64 {
	lower := strings.ToLower(s.id)
	if strings.Contains(lower, "mock") {
		return s.uniform(20, 25)
	}
	for _, b := range simulatedBases {
		if strings.HasSuffix(lower, b.suffix) {
			return b.base
		}
	}
	return s.uniform(15, 85)
}

func (s *Simulated) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f float64
	if s.rng != nil {
		f = s.rng.Float64()
	} else {
		f = rand.Float64()
	}
	return lo + f*(hi-lo)
}

// ID returns the sensor identifier
func (s *Simulated) ID() string {
	return s.id
}

// Base returns the fixed base temperature in Celsius
func (s *Simulated) Base() float64 {
	return s.base
}

// Temperature returns base ± jitter converted to unit; it never fails
func (s *Simulated) Temperature(_ context.Context, unit Unit) (float64, error) {
	c := s.base + s.uniform(-jitterCelsius, jitterCelsius)
	return unit.FromCelsius(c), nil
}
