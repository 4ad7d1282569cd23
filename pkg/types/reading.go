package types

import (
	"sort"
	"time"
)

// EfficiencyKey is the pseudo-entry name the monitor adds to a ReadingSet
// once the heat exchanger efficiency is known
const EfficiencyKey = "Efficiency"

// ReadingSet maps a logical sensor name to a temperature in Celsius
// A set is produced fresh on every acquisition cycle and may be partial
type ReadingSet map[string]float64

// Clone returns a shallow copy of the set
func (rs ReadingSet) Clone() ReadingSet {
	out := make(ReadingSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// Names returns the entry names in sorted order
func (rs ReadingSet) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Temperatures returns a copy without the efficiency pseudo-entry
func (rs ReadingSet) Temperatures() ReadingSet {
	out := make(ReadingSet, len(rs))
	for k, v := range rs {
		if k == EfficiencyKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Efficiency returns the efficiency pseudo-entry if present
func (rs ReadingSet) Efficiency() (float64, bool) {
	v, ok := rs[EfficiencyKey]
	return v, ok
}

// ReadingType identifies the type of buffered reading
type ReadingType string

const (
	ReadingTypeTemperature ReadingType = "temperature"
	ReadingTypeEfficiency  ReadingType = "efficiency"
)

// Reading is a union type holding a single sample queued for remote write
type Reading struct {
	Type        ReadingType
	Temperature *TemperatureReading
	Efficiency  *EfficiencyReading
}

// TemperatureReading is one sensor sample from an acquisition cycle
type TemperatureReading struct {
	Timestamp          time.Time
	SensorName         string // Logical name from the device mapping (T1..T4)
	TemperatureCelsius float64
}

// EfficiencyReading is the derived heat exchanger efficiency for a cycle
type EfficiencyReading struct {
	Timestamp time.Time
	Percent   float64
}

// GetTimestamp returns the timestamp of the reading regardless of type
func (r *Reading) GetTimestamp() time.Time {
	switch r.Type {
	case ReadingTypeTemperature:
		return r.Temperature.Timestamp
	case ReadingTypeEfficiency:
		return r.Efficiency.Timestamp
	default:
		return time.Time{}
	}
}

// FromReadingSet converts a cycle's reading set into buffered readings
// The efficiency pseudo-entry becomes an EfficiencyReading
func FromReadingSet(rs ReadingSet, ts time.Time) []*Reading {
	readings := make([]*Reading, 0, len(rs))
	for _, name := range rs.Names() {
		value := rs[name]
		if name == EfficiencyKey {
			readings = append(readings, &Reading{
				Type: ReadingTypeEfficiency,
				Efficiency: &EfficiencyReading{
					Timestamp: ts,
					Percent:   value,
				},
			})
			continue
		}
		readings = append(readings, &Reading{
			Type: ReadingTypeTemperature,
			Temperature: &TemperatureReading{
				Timestamp:          ts,
				SensorName:         name,
				TemperatureCelsius: value,
			},
		})
	}
	return readings
}
