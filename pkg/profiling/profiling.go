package profiling

import (
	"fmt"
	"runtime"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/mjasion/balena-home/heatexchanger/pkg/config"
)

// Profiler wraps the Pyroscope profiler
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
}

// profileTypes maps config names onto pyroscope profile types
var profileTypes = map[string][]pyroscope.ProfileType{
	config.ProfileCPU:          {pyroscope.ProfileCPU},
	config.ProfileAllocObjects: {pyroscope.ProfileAllocObjects},
	config.ProfileAllocSpace:   {pyroscope.ProfileAllocSpace},
	config.ProfileInuseObjects: {pyroscope.ProfileInuseObjects},
	config.ProfileInuseSpace:   {pyroscope.ProfileInuseSpace},
	config.ProfileGoroutines:   {pyroscope.ProfileGoroutines},
	config.ProfileMutex:        {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	config.ProfileBlock:        {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// Start initializes and starts the Pyroscope profiler in push mode
// A nil Profiler is returned when profiling is disabled; Stop is nil-safe
func Start(cfg *config.ProfilingConfig, logger *zap.Logger) (*Profiler, error) {
	if !cfg.Enabled {
		logger.Info("profiling is disabled")
		return nil, nil
	}

	var types []pyroscope.ProfileType
	for _, name := range cfg.ProfileTypes {
		types = append(types, profileTypes[name]...)
	}

	if cfg.Has(config.ProfileMutex) {
		runtime.SetMutexProfileFraction(cfg.MutexProfileRate)
	}
	if cfg.Has(config.ProfileBlock) {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}

	tags := make(map[string]string, len(cfg.Tags))
	for k, v := range cfg.Tags {
		tags[k] = v
	}

	pyroConfig := pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags:            tags,
		ProfileTypes:    types,
		DisableGCRuns:   cfg.DisableGCRuns,
		TenantID:        cfg.TenantID,
	}
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPassword != "" {
		pyroConfig.BasicAuthUser = cfg.BasicAuthUser
		pyroConfig.BasicAuthPassword = cfg.BasicAuthPassword
	}

	profiler, err := pyroscope.Start(pyroConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Strings("profile_types", cfg.ProfileTypes),
	)

	return &Profiler{
		profiler: profiler,
		logger:   logger,
	}, nil
}

// Stop flushes and stops the profiler
func (p *Profiler) Stop() error {
	if p == nil || p.profiler == nil {
		return nil
	}

	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("profiler stop: %w", err)
	}

	p.logger.Info("Pyroscope profiler stopped")
	return nil
}
