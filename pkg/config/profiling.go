package config

import (
	"fmt"
	"strings"
)

// Profile type names accepted in ProfilingConfig.ProfileTypes
const (
	ProfileCPU          = "cpu"
	ProfileAllocObjects = "alloc_objects"
	ProfileAllocSpace   = "alloc_space"
	ProfileInuseObjects = "inuse_objects"
	ProfileInuseSpace   = "inuse_space"
	ProfileGoroutines   = "goroutines"
	ProfileMutex        = "mutex"
	ProfileBlock        = "block"
)

var knownProfileTypes = map[string]bool{
	ProfileCPU:          true,
	ProfileAllocObjects: true,
	ProfileAllocSpace:   true,
	ProfileInuseObjects: true,
	ProfileInuseSpace:   true,
	ProfileGoroutines:   true,
	ProfileMutex:        true,
	ProfileBlock:        true,
}

// ProfilingConfig contains Pyroscope profiling configuration
type ProfilingConfig struct {
	Enabled           bool              `yaml:"enabled" env:"PYROSCOPE_ENABLED" env-default:"false"`
	ApplicationName   string            `yaml:"applicationName" env:"PYROSCOPE_APPLICATION_NAME" env-default:"heat-exchanger-monitor"`
	ServerAddress     string            `yaml:"serverAddress" env:"PYROSCOPE_SERVER_ADDRESS"`
	BasicAuthUser     string            `yaml:"basicAuthUser" env:"PYROSCOPE_BASIC_AUTH_USER"`
	BasicAuthPassword string            `yaml:"basicAuthPassword" env:"PYROSCOPE_BASIC_AUTH_PASSWORD"`
	TenantID          string            `yaml:"tenantID" env:"PYROSCOPE_TENANT_ID"`
	Tags              map[string]string `yaml:"tags"`
	ProfileTypes      []string          `yaml:"profileTypes" env:"PYROSCOPE_PROFILE_TYPES" env-separator:"," env-default:"cpu,alloc_objects,alloc_space,inuse_objects,inuse_space"`

	// Sampling rates, only used when the mutex or block profile is enabled
	MutexProfileRate int `yaml:"mutexProfileRate" env:"PYROSCOPE_MUTEX_PROFILE_RATE" env-default:"5"`
	BlockProfileRate int `yaml:"blockProfileRate" env:"PYROSCOPE_BLOCK_PROFILE_RATE" env-default:"5"`

	DisableGCRuns bool `yaml:"disableGCRuns" env:"PYROSCOPE_DISABLE_GC_RUNS" env-default:"false"`
}

// Has reports whether the named profile type is enabled
func (c *ProfilingConfig) Has(profileType string) bool {
	for _, p := range c.ProfileTypes {
		if p == profileType {
			return true
		}
	}
	return false
}

// ValidateProfiling validates profiling configuration if enabled
func ValidateProfiling(cfg *ProfilingConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.ApplicationName == "" {
		return fmt.Errorf("profiling application name is required when profiling is enabled")
	}

	if cfg.ServerAddress == "" {
		return fmt.Errorf("profiling server address is required when profiling is enabled")
	}

	if len(cfg.ProfileTypes) == 0 {
		return fmt.Errorf("at least one profile type must be enabled")
	}

	for i, p := range cfg.ProfileTypes {
		p = strings.ToLower(strings.TrimSpace(p))
		if !knownProfileTypes[p] {
			return fmt.Errorf("unknown profile type %q", p)
		}
		cfg.ProfileTypes[i] = p
	}

	if cfg.Has(ProfileMutex) && cfg.MutexProfileRate < 0 {
		return fmt.Errorf("profiling mutex profile rate must be >= 0")
	}

	if cfg.Has(ProfileBlock) && cfg.BlockProfileRate < 0 {
		return fmt.Errorf("profiling block profile rate must be >= 0")
	}

	return nil
}
