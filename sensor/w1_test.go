package sensor

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func fakeDevice(t *testing.T, id string, files map[string]string) string {
	t.Helper()
	devices := t.TempDir()
	dir := filepath.Join(devices, FamilyPrefix+id)
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return devices
}

func TestW1Sensor_TemperatureFile(t *testing.T) {
	devices := fakeDevice(t, "01", map[string]string{"temperature": "23125\n"})

	s, err := NewW1Sensor("01", devices, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	c, err := s.Temperature(context.Background(), Celsius)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(c-23.125) > 1e-9 {
		t.Errorf("Expected 23.125, got %v", c)
	}

	f, _ := s.Temperature(context.Background(), Fahrenheit)
	if math.Abs(f-73.625) > 1e-9 {
		t.Errorf("Expected 73.625°F, got %v", f)
	}
}

func TestW1Sensor_SlaveFallback(t *testing.T) {
	devices := fakeDevice(t, "02", map[string]string{
		"w1_slave": "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=-1250\n",
	})

	s, err := NewW1Sensor("02", devices, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	c, err := s.Temperature(context.Background(), Celsius)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(c-(-1.25)) > 1e-9 {
		t.Errorf("Expected -1.25, got %v", c)
	}
}

func TestW1Sensor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		reject bool
	}{
		{
			name:  "crc failure",
			files: map[string]string{"w1_slave": "72 01 4b 46 7f ff 0e 10 57 : crc=57 NO\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"},
		},
		{
			name:  "truncated dump",
			files: map[string]string{"w1_slave": "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n"},
		},
		{
			name:  "garbage temperature",
			files: map[string]string{"temperature": "abc"},
		},
		{
			name: "no attributes",
		},
		{
			name:   "reset value rejected",
			files:  map[string]string{"temperature": "85000"},
			reject: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := fakeDevice(t, "03", tt.files)
			s, err := NewW1Sensor("03", devices, tt.reject)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			_, err = s.Temperature(context.Background(), Celsius)
			if !errors.Is(err, ErrSensorRead) {
				t.Errorf("Expected ErrSensorRead, got %v", err)
			}
		})
	}
}

func TestW1Sensor_ResetValueAllowed(t *testing.T) {
	devices := fakeDevice(t, "04", map[string]string{"temperature": "85000"})
	s, _ := NewW1Sensor("04", devices, false)

	c, err := s.Temperature(context.Background(), Celsius)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c != 85 {
		t.Errorf("Expected 85, got %v", c)
	}
}

func TestW1Sensor_CancelledContext(t *testing.T) {
	devices := fakeDevice(t, "05", map[string]string{"temperature": "20000"})
	s, _ := NewW1Sensor("05", devices, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Temperature(ctx, Celsius); !errors.Is(err, ErrSensorRead) {
		t.Errorf("Expected ErrSensorRead, got %v", err)
	}
}

func TestNewW1Sensor_Missing(t *testing.T) {
	_, err := NewW1Sensor("missing", t.TempDir(), false)
	if !errors.Is(err, ErrSensorNotFound) {
		t.Errorf("Expected ErrSensorNotFound, got %v", err)
	}
}
