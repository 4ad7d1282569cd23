// Package monitor runs the periodic acquisition loop: read every sensor,
// derive the efficiency, append the reading log and hand the augmented
// reading set to the dispatch callback.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/efficiency"
	"github.com/mjasion/balena-home/heatexchanger/pkg/telemetry"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultInterval is used when Config.Interval is not positive
const DefaultInterval = 30 * time.Second

var tracer = otel.Tracer("monitor")

// ErrAlreadyStarted is returned by Run on a monitor that is not idle
var ErrAlreadyStarted = errors.New("monitor already started")

// State of the monitor lifecycle
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Source produces reading sets
type Source interface {
	ReadAll(ctx context.Context) types.ReadingSet
	Names() []string
}

// DispatchFunc receives every cycle's reading set, including the efficiency
// pseudo-entry when it is available. It runs synchronously on the loop.
type DispatchFunc func(ctx context.Context, readings types.ReadingSet)

// Config for a Monitor
type Config struct {
	Interval    time.Duration
	LogPath     string // Empty disables the reading log
	Dispatch    DispatchFunc
	Now         func() time.Time
	Instruments *telemetry.Instruments
}

// Cycle is the outcome of one acquisition cycle
type Cycle struct {
	Timestamp  time.Time
	Readings   types.ReadingSet
	Efficiency efficiency.Result
}

// Monitor drives the acquisition loop
type Monitor struct {
	source      Source
	interval    time.Duration
	readingLog  *ReadingLog
	dispatch    DispatchFunc
	now         func() time.Time
	instruments *telemetry.Instruments
	logger      *zap.Logger

	mu     sync.RWMutex
	state  State
	latest *Cycle
}

// New creates an idle monitor
func New(source Source, cfg Config, logger *zap.Logger) *Monitor {
	m := &Monitor{
		source:      source,
		interval:    cfg.Interval,
		dispatch:    cfg.Dispatch,
		now:         cfg.Now,
		instruments: cfg.Instruments,
		logger:      logger,
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	if cfg.LogPath != "" {
		m.readingLog = NewReadingLog(cfg.LogPath)
	}
	return m
}

// Interval returns the pause between cycles
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// State returns the current lifecycle state
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Latest returns the most recent cycle, if any has completed
func (m *Monitor) Latest() (Cycle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Cycle{}, false
	}
	c := *m.latest
	c.Readings = c.Readings.Clone()
	return c, true
}

// StaleFactor is the number of intervals without a completed cycle after
// which the monitor is considered stalled
const StaleFactor = 3

// Alive reports whether the loop is making progress at now: not stopped, and
// either no cycle yet or the last one within StaleFactor intervals.
func (m *Monitor) Alive(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == Stopped {
		return false
	}
	if m.latest == nil {
		return true
	}
	return now.Sub(m.latest.Timestamp) <= StaleFactor*m.interval
}

// Run executes cycles until ctx is cancelled. Cancellation is observed
// between cycles and while sleeping; an in-flight cycle runs to completion.
// Run returns nil on cancellation and ErrAlreadyStarted if the monitor is
// not idle.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = Running
	m.mu.Unlock()

	defer m.setState(Stopped)

	m.logger.Info("starting continuous monitoring",
		zap.Duration("interval", m.interval),
		zap.Int("sensor_count", len(m.source.Names())))

	for {
		if ctx.Err() != nil {
			m.logger.Info("monitoring stopped")
			return nil
		}

		m.RunOnce(ctx)

		m.logger.Debug("next reading scheduled", zap.Duration("in", m.interval))
		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("monitoring stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// RunOnce performs a single cycle without sleeping and returns it
func (m *Monitor) RunOnce(ctx context.Context) Cycle {
	ctx, span := tracer.Start(ctx, "monitor.cycle")
	defer span.End()

	readings := m.source.ReadAll(ctx)
	ts := m.now()

	var result efficiency.Result
	if len(readings) > 0 {
		result = efficiency.Evaluate(readings, m.logger)
		if p, ok := result.Percent(); ok {
			readings = readings.Clone()
			readings[types.EfficiencyKey] = p
		}
	} else {
		result = efficiency.Calculate(readings)
		m.logger.Warn("no temperature readings acquired")
	}

	m.record(ctx, readings, result)

	// A cycle without readings leaves no line in the log
	if m.readingLog != nil && len(readings) > 0 {
		if err := m.readingLog.Append(ts, readings); err != nil {
			telemetry.WarnWithTrace(ctx, m.logger, "could not write to log file",
				zap.String("path", m.readingLog.Path()),
				zap.Error(err))
		}
	}

	cycle := Cycle{Timestamp: ts, Readings: readings, Efficiency: result}
	m.mu.Lock()
	m.latest = &Cycle{Timestamp: ts, Readings: readings.Clone(), Efficiency: result}
	m.mu.Unlock()

	span.SetAttributes(
		attribute.Int("readings.count", len(readings.Temperatures())),
		attribute.Bool("efficiency.available", result.Available()))

	if m.dispatch != nil {
		m.dispatch(ctx, readings)
	}

	return cycle
}

func (m *Monitor) record(ctx context.Context, readings types.ReadingSet, result efficiency.Result) {
	temps := readings.Temperatures()
	for name, v := range temps {
		m.instruments.RecordTemperature(ctx, name, v)
	}
	if p, ok := result.Percent(); ok {
		m.instruments.RecordEfficiency(ctx, p)
	}

	missing := len(m.source.Names()) - len(temps)
	if missing < 0 {
		missing = 0
	}
	m.instruments.RecordCycle(ctx, missing)

	m.logger.Info("cycle completed",
		zap.Int("readings", len(temps)),
		zap.Int("missing", missing),
		zap.Stringer("efficiency", result))
}
