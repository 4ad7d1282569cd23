// Package heartbeat pings a dead-man switch URL on a schedule so an external
// checker notices when the service stops.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AliveFunc reports whether the service is healthy enough to ping
type AliveFunc func() bool

// Heartbeat runs the periodic ping
type Heartbeat struct {
	url      string
	period   time.Duration
	alive    AliveFunc
	client   *http.Client
	cron     *cron.Cron
	logger   *zap.Logger
	pings    atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

// New schedules a GET of url every period. It does not start the scheduler.
// When alive is set and returns false the ping is skipped, so the external
// checker raises the alarm. A nil alive always pings.
func New(url string, period time.Duration, alive AliveFunc, logger *zap.Logger) (*Heartbeat, error) {
	if period <= 0 {
		return nil, fmt.Errorf("heartbeat period must be positive, got %s", period)
	}

	h := &Heartbeat{
		url:    url,
		period: period,
		alive:  alive,
		client: &http.Client{Timeout: 10 * time.Second},
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := h.cron.AddFunc("@every "+period.String(), h.Ping); err != nil {
		return nil, fmt.Errorf("failed to schedule heartbeat: %w", err)
	}
	return h, nil
}

// Start runs the scheduler in its own goroutine
func (h *Heartbeat) Start() {
	h.logger.Info("starting heartbeat", zap.String("url", h.url), zap.Duration("period", h.period))
	h.cron.Start()
}

// Stop stops the scheduler and waits for a running ping to finish
func (h *Heartbeat) Stop(ctx context.Context) {
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Ping performs a single heartbeat request. Failures are logged only.
func (h *Heartbeat) Ping() {
	if h.alive != nil && !h.alive() {
		h.skipped.Add(1)
		h.logger.Warn("skipping heartbeat, service is not making progress", zap.String("url", h.url))
		return
	}

	h.pings.Add(1)

	resp, err := h.client.Get(h.url)
	if err != nil {
		h.failures.Add(1)
		h.logger.Warn("heartbeat failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		h.failures.Add(1)
		h.logger.Warn("heartbeat rejected", zap.Int("status_code", resp.StatusCode))
		return
	}
	h.logger.Debug("heartbeat sent", zap.String("status", resp.Status))
}

// Stats returns the number of pings attempted and failed
func (h *Heartbeat) Stats() (pings, failures int64) {
	return h.pings.Load(), h.failures.Load()
}

// Skipped returns the number of pings withheld because the service was not alive
func (h *Heartbeat) Skipped() int64 {
	return h.skipped.Load()
}
