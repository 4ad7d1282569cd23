package collector

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mjasion/balena-home/heatexchanger/devicemap"
	"github.com/mjasion/balena-home/heatexchanger/sensor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func simulatedMapping() devicemap.Mapping {
	ids := sensor.SimulatedIDs()
	return devicemap.Mapping{
		"T1": "28-" + ids[0],
		"T2": "28-" + ids[1],
		"T3": "28-" + ids[2],
		"T4": "28-" + ids[3],
	}
}

func newMockCollector(mapping devicemap.Mapping, logger *zap.Logger) *Collector {
	return New(mapping, Options{
		MockMode: true,
		Rand:     rand.New(rand.NewPCG(7, 11)),
	}, logger)
}

func TestReadAll_MockMode(t *testing.T) {
	c := newMockCollector(simulatedMapping(), zap.NewNop())

	if !c.MockMode() {
		t.Error("Expected mock mode")
	}

	readings := c.ReadAll(context.Background())
	if !reflect.DeepEqual(readings.Names(), []string{"T1", "T2", "T3", "T4"}) {
		t.Fatalf("Unexpected names: %v", readings.Names())
	}

	ranges := map[string][2]float64{
		"T1": {80, 90},
		"T2": {40, 50},
		"T3": {10, 20},
		"T4": {50, 60},
	}
	for name, r := range ranges {
		if v := readings[name]; v <= r[0] || v >= r[1] {
			t.Errorf("%s: %.2f outside (%.0f, %.0f)", name, v, r[0], r[1])
		}
	}
}

func TestReadAll_CelsiusRegardlessOfUnit(t *testing.T) {
	mapping := devicemap.Mapping{"T3": "28-" + sensor.SimulatedIDs()[2]}

	for _, unit := range []sensor.Unit{sensor.Fahrenheit, sensor.Kelvin} {
		c := New(mapping, Options{
			MockMode: true,
			Unit:     unit,
			Rand:     rand.New(rand.NewPCG(7, 11)),
		}, zap.NewNop())

		readings := c.ReadAll(context.Background())
		if v, ok := readings["T3"]; !ok || v <= 10 || v >= 20 {
			t.Errorf("%s: expected T3 in (10, 20) Celsius, got %.2f", unit, v)
		}

		display, ok := c.ReadTemperature(context.Background(), "T3")
		if !ok {
			t.Fatalf("%s: expected a reading", unit)
		}
		if lo, hi := unit.FromCelsius(13), unit.FromCelsius(17); display < lo || display > hi {
			t.Errorf("%s: expected ReadTemperature in configured unit [%.2f, %.2f], got %.2f", unit, lo, hi, display)
		}
	}
}

func TestReadAll_SubsetOfMapping(t *testing.T) {
	devices := t.TempDir()
	good := filepath.Join(devices, "28-aaaa")
	if err := os.Mkdir(good, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(good, "temperature"), []byte("21500"), 0644); err != nil {
		t.Fatal(err)
	}
	// Present but unreadable: no attribute files
	if err := os.Mkdir(filepath.Join(devices, "28-bbbb"), 0755); err != nil {
		t.Fatal(err)
	}

	mapping := devicemap.Mapping{
		"T1": "28-aaaa",
		"T2": "28-bbbb",
		"T3": "28-cccc", // Never attached
		"T4": "28-simulated",
	}
	c := New(mapping, Options{DevicesDir: devices, Rand: rand.New(rand.NewPCG(1, 1))}, zap.NewNop())

	readings := c.ReadAll(context.Background())
	for name := range readings {
		if _, ok := mapping[name]; !ok {
			t.Errorf("Reading for unmapped name %q", name)
		}
	}
	if !reflect.DeepEqual(readings.Names(), []string{"T1", "T4"}) {
		t.Fatalf("Expected T1 and T4, got %v", readings.Names())
	}
	if readings["T1"] != 21.5 {
		t.Errorf("Expected T1 21.5, got %v", readings["T1"])
	}
}

func TestReadTemperature_UnknownName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newMockCollector(simulatedMapping(), zap.New(core))

	v, ok := c.ReadTemperature(context.Background(), "T9")
	if ok {
		t.Fatalf("Expected not ok, got %v", v)
	}
	if logs.FilterMessage("sensor not found").FilterField(zap.String("sensor_name", "T9")).Len() != 1 {
		t.Error("Expected a 'sensor not found' warning for T9")
	}
}

func TestReadTemperatureUnit(t *testing.T) {
	mapping := devicemap.Mapping{"T3": "28-" + sensor.SimulatedIDs()[2]}

	c1 := newMockCollector(mapping, zap.NewNop())
	c2 := newMockCollector(mapping, zap.NewNop())

	celsius, ok := c1.ReadTemperature(context.Background(), "T3")
	if !ok {
		t.Fatal("Expected a reading")
	}
	kelvin, ok := c2.ReadTemperatureUnit(context.Background(), "T3", sensor.Kelvin)
	if !ok {
		t.Fatal("Expected a reading")
	}
	if diff := kelvin - celsius - 273.15; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected %.3f K, got %.3f", celsius+273.15, kelvin)
	}
}

func TestNames(t *testing.T) {
	c := newMockCollector(simulatedMapping(), zap.NewNop())
	if !reflect.DeepEqual(c.Names(), []string{"T1", "T2", "T3", "T4"}) {
		t.Errorf("Unexpected names: %v", c.Names())
	}
}
