// Package sensor provides the temperature reading capability for DS18B20
// 1-Wire sensors, backed either by the Linux w1-therm driver or by a
// simulated sensor when no hardware is present.
package sensor

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDevicesDir is where the w1 bus master exposes attached slaves
const DefaultDevicesDir = "/sys/bus/w1/devices"

// FamilyPrefix is the DS18B20 family code prefix of a 1-Wire address
const FamilyPrefix = "28-"

// simulatedMarker in an identifier forces a simulated sensor
const simulatedMarker = "simulated"

var (
	// ErrSensorRead is wrapped by every failed hardware read
	ErrSensorRead = errors.New("sensor read failed")
	// ErrSensorNotFound is returned when no device exists for an identifier
	ErrSensorNotFound = errors.New("sensor not found")
)

// Sensor reads the current temperature of one physical sensor
type Sensor interface {
	// ID returns the identifier without the family prefix
	ID() string
	// Temperature returns the current reading in the requested unit
	Temperature(ctx context.Context, unit Unit) (float64, error)
}

// Options control how sensors are constructed
type Options struct {
	// MockMode forces simulated sensors for every identifier
	MockMode bool
	// DevicesDir overrides DefaultDevicesDir
	DevicesDir string
	// RejectResetValue treats the DS18B20 power-on value (85°C) as a read error
	RejectResetValue bool
	// Rand is the jitter source for simulated sensors; nil uses the global source
	Rand *rand.Rand
}

func (o Options) devicesDir() string {
	if o.DevicesDir == "" {
		return DefaultDevicesDir
	}
	return o.DevicesDir
}

// New creates the sensor for a physical identifier. The family prefix is
// stripped; identifiers containing "simulated", or any identifier in mock
// mode, produce a Simulated sensor.
func New(id string, opts Options) (Sensor, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), FamilyPrefix)

	if opts.MockMode || IsSimulatedID(id) {
		return NewSimulated(id, opts.Rand), nil
	}

	return NewW1Sensor(id, opts.devicesDir(), opts.RejectResetValue)
}

// IsSimulatedID reports whether the identifier carries the simulated marker
func IsSimulatedID(id string) bool {
	return strings.Contains(strings.ToLower(id), simulatedMarker)
}

// DetectMockMode decides whether simulated sensors should be used.
// An explicit override wins; otherwise mock mode is enabled when the w1
// driver has not created the devices directory.
func DetectMockMode(override *bool, devicesDir string) bool {
	if override != nil {
		return *override
	}
	if devicesDir == "" {
		devicesDir = DefaultDevicesDir
	}
	info, err := os.Stat(devicesDir)
	return err != nil || !info.IsDir()
}

// Available lists identifiers (without the family prefix) of the DS18B20
// devices attached to the bus, sorted
func Available(devicesDir string) ([]string, error) {
	if devicesDir == "" {
		devicesDir = DefaultDevicesDir
	}
	matches, err := filepath.Glob(filepath.Join(devicesDir, FamilyPrefix+"*"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimPrefix(filepath.Base(m), FamilyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}
