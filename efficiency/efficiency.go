// Package efficiency derives heat exchanger effectiveness from the four
// port temperatures:
//
//	efficiency = (T4 - T3) / (T1 - T3) * 100
//
// where T1 is the hot inlet, T2 the hot outlet, T3 the cold inlet and T4 the
// cold outlet. Values are not clamped to [0, 100].
package efficiency

import (
	"fmt"
	"math"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.uber.org/zap"
)

// Sensor names required by the calculation, in the order they are checked
const (
	HotInlet   = "T1"
	HotOutlet  = "T2"
	ColdInlet  = "T3"
	ColdOutlet = "T4"
)

var required = []string{HotInlet, HotOutlet, ColdInlet, ColdOutlet}

// Cause classifies why a result is unavailable
type Cause int

const (
	CauseNone Cause = iota
	CauseMissingReading
	CauseNoTemperatureDifference
	CauseArithmeticFault
)

func (c Cause) String() string {
	switch c {
	case CauseMissingReading:
		return "missing_reading"
	case CauseNoTemperatureDifference:
		return "no_temperature_difference"
	case CauseArithmeticFault:
		return "arithmetic_fault"
	default:
		return "none"
	}
}

// Result is either a finite percentage or unavailable with a reason
type Result struct {
	percent float64
	cause   Cause
	reason  string
}

func available(p float64) Result {
	return Result{percent: p}
}

func unavailable(cause Cause, reason string) Result {
	return Result{cause: cause, reason: reason}
}

// Percent returns the efficiency and whether it is available
func (r Result) Percent() (float64, bool) {
	if r.cause != CauseNone {
		return 0, false
	}
	return r.percent, true
}

// Available reports whether a percentage was computed
func (r Result) Available() bool {
	return r.cause == CauseNone
}

// Cause returns CauseNone for available results
func (r Result) Cause() Cause {
	return r.cause
}

// Reason is a human readable explanation of an unavailable result
func (r Result) Reason() string {
	return r.reason
}

func (r Result) String() string {
	if p, ok := r.Percent(); ok {
		return fmt.Sprintf("%.1f%%", p)
	}
	return "unavailable: " + r.reason
}

// Calculate computes the efficiency of a reading set. It has no side effects
// and returns the same result for the same input.
func Calculate(readings types.ReadingSet) Result {
	for _, name := range required {
		if _, ok := readings[name]; !ok {
			return unavailable(CauseMissingReading, "missing temperature reading for "+name)
		}
	}

	t1, t3, t4 := readings[HotInlet], readings[ColdInlet], readings[ColdOutlet]

	denominator := t1 - t3
	if denominator == 0 {
		return unavailable(CauseNoTemperatureDifference, "no temperature difference between hot and cold inlet")
	}

	p := (t4 - t3) / denominator * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return unavailable(CauseArithmeticFault, fmt.Sprintf("non-finite efficiency from T1=%v T3=%v T4=%v", t1, t3, t4))
	}
	return available(p)
}

// Evaluate calculates the efficiency and logs the heat exchanger analysis
func Evaluate(readings types.ReadingSet, logger *zap.Logger) Result {
	result := Calculate(readings)

	switch result.Cause() {
	case CauseNone:
		t1, t2 := readings[HotInlet], readings[HotOutlet]
		t3, t4 := readings[ColdInlet], readings[ColdOutlet]
		p, _ := result.Percent()
		logger.Info("heat exchanger analysis",
			zap.Float64("hot_inlet", t1),
			zap.Float64("hot_outlet", t2),
			zap.Float64("hot_delta", t1-t2),
			zap.Float64("cold_inlet", t3),
			zap.Float64("cold_outlet", t4),
			zap.Float64("cold_delta", t4-t3),
			zap.Float64("efficiency_percent", p))
	case CauseArithmeticFault:
		logger.Error("error calculating efficiency", zap.String("reason", result.Reason()))
	default:
		logger.Warn("cannot calculate efficiency",
			zap.Stringer("cause", result.Cause()),
			zap.String("reason", result.Reason()))
	}

	return result
}
