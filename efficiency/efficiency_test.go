package efficiency

import (
	"math"
	"strings"
	"testing"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		readings  types.ReadingSet
		want      float64
		wantCause Cause
	}{
		{
			name:     "typical",
			readings: types.ReadingSet{"T1": 85, "T2": 45, "T3": 15, "T4": 55},
			want:     57.142857142857146,
		},
		{
			name:     "perfect exchanger",
			readings: types.ReadingSet{"T1": 80, "T2": 20, "T3": 20, "T4": 80},
			want:     100,
		},
		{
			name:     "negative not clamped",
			readings: types.ReadingSet{"T1": 60, "T2": 50, "T3": 20, "T4": 10},
			want:     -25,
		},
		{
			name:     "above hundred not clamped",
			readings: types.ReadingSet{"T1": 60, "T2": 50, "T3": 20, "T4": 80},
			want:     150,
		},
		{
			name:     "extra entries ignored",
			readings: types.ReadingSet{"T1": 85, "T2": 45, "T3": 15, "T4": 55, "T5": 99, types.EfficiencyKey: 1},
			want:     57.142857142857146,
		},
		{
			name:      "missing T2",
			readings:  types.ReadingSet{"T1": 85, "T3": 15, "T4": 55},
			wantCause: CauseMissingReading,
		},
		{
			name:      "empty",
			readings:  types.ReadingSet{},
			wantCause: CauseMissingReading,
		},
		{
			name:      "equal inlets",
			readings:  types.ReadingSet{"T1": 30, "T2": 25, "T3": 30, "T4": 35},
			wantCause: CauseNoTemperatureDifference,
		},
		{
			name:      "NaN input",
			readings:  types.ReadingSet{"T1": math.NaN(), "T2": 45, "T3": 15, "T4": 55},
			wantCause: CauseArithmeticFault,
		},
		{
			name:      "infinite input",
			readings:  types.ReadingSet{"T1": 85, "T2": 45, "T3": 15, "T4": math.Inf(1)},
			wantCause: CauseArithmeticFault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(tt.readings)
			if result.Cause() != tt.wantCause {
				t.Fatalf("Expected cause %v, got %v (%s)", tt.wantCause, result.Cause(), result.Reason())
			}

			p, ok := result.Percent()
			if tt.wantCause != CauseNone {
				if ok {
					t.Errorf("Expected unavailable, got %v", p)
				}
				if result.Reason() == "" {
					t.Error("Expected a reason")
				}
				return
			}
			if !ok {
				t.Fatalf("Expected available, got %s", result)
			}
			if math.Abs(p-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, p)
			}
		})
	}
}

func TestCalculate_ReasonNamesFirstMissing(t *testing.T) {
	result := Calculate(types.ReadingSet{"T1": 85, "T4": 55})
	if !strings.HasSuffix(result.Reason(), "T2") {
		t.Errorf("Expected reason to name T2, got %q", result.Reason())
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	readings := types.ReadingSet{"T1": 72.5, "T2": 40.1, "T3": 12.3, "T4": 49.9}
	first := Calculate(readings)
	for i := 0; i < 10; i++ {
		if got := Calculate(readings); got != first {
			t.Fatalf("Result changed on call %d: %v vs %v", i, got, first)
		}
	}
	if len(readings) != 4 {
		t.Error("Calculate modified its input")
	}
}

func TestResultString(t *testing.T) {
	if got := Calculate(types.ReadingSet{"T1": 85, "T2": 45, "T3": 15, "T4": 55}).String(); got != "57.1%" {
		t.Errorf("Expected 57.1%%, got %q", got)
	}
	if got := Calculate(nil).String(); !strings.HasPrefix(got, "unavailable") {
		t.Errorf("Expected unavailable prefix, got %q", got)
	}
}

func TestEvaluate_Logging(t *testing.T) {
	tests := []struct {
		name     string
		readings types.ReadingSet
		level    zapcore.Level
		message  string
	}{
		{
			name:     "available",
			readings: types.ReadingSet{"T1": 85, "T2": 45, "T3": 15, "T4": 55},
			level:    zapcore.InfoLevel,
			message:  "heat exchanger analysis",
		},
		{
			name:     "missing",
			readings: types.ReadingSet{"T1": 85},
			level:    zapcore.WarnLevel,
			message:  "cannot calculate efficiency",
		},
		{
			name:     "fault",
			readings: types.ReadingSet{"T1": math.NaN(), "T2": 45, "T3": 15, "T4": 55},
			level:    zapcore.ErrorLevel,
			message:  "error calculating efficiency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			Evaluate(tt.readings, zap.New(core))

			entries := logs.FilterMessage(tt.message).All()
			if len(entries) != 1 {
				t.Fatalf("Expected one %q entry, got %d", tt.message, len(entries))
			}
			if entries[0].Level != tt.level {
				t.Errorf("Expected level %v, got %v", tt.level, entries[0].Level)
			}
		})
	}
}
