package sensor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// resetValueMilli is what a DS18B20 reports before its first conversion
const resetValueMilli = 85000

// W1Sensor reads a DS18B20 through the Linux w1-therm sysfs interface
type W1Sensor struct {
	id               string
	dir              string
	rejectResetValue bool
}

// NewW1Sensor binds a sensor to <devicesDir>/28-<id>. It fails with
// ErrSensorNotFound if the device directory does not exist.
func NewW1Sensor(id, devicesDir string, rejectResetValue bool) (*W1Sensor, error) {
	dir := filepath.Join(devicesDir, FamilyPrefix+id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	return &W1Sensor{id: id, dir: dir, rejectResetValue: rejectResetValue}, nil
}

// ID returns the identifier without the family prefix
func (s *W1Sensor) ID() string {
	return s.id
}

// Temperature performs a bus read. Newer kernels expose a plain
// "temperature" attribute; older ones only the two line "w1_slave" dump.
func (s *W1Sensor) Temperature(ctx context.Context, unit Unit) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSensorRead, s.id, err)
	}

	milli, err := s.readMilli()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSensorRead, s.id, err)
	}
	if s.rejectResetValue && milli == resetValueMilli {
		return 0, fmt.Errorf("%w: %s: sensor returned power-on reset value", ErrSensorRead, s.id)
	}

	return unit.FromCelsius(float64(milli) / 1000), nil
}

func (s *W1Sensor) readMilli() (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "temperature"))
	if err == nil {
		return strconv.Atoi(strings.TrimSpace(string(data)))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}

	data, err = os.ReadFile(filepath.Join(s.dir, "w1_slave"))
	if err != nil {
		return 0, err
	}
	return parseW1Slave(string(data))
}

// parseW1Slave parses the w1_slave dump:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(raw string) (int, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("unexpected w1_slave content %q", raw)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("crc check failed")
	}
	idx := strings.LastIndex(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("temperature value missing in %q", lines[1])
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("invalid temperature value: %w", err)
	}
	return milli, nil
}
