package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/collector"
	"github.com/mjasion/balena-home/heatexchanger/config"
	"github.com/mjasion/balena-home/heatexchanger/devicemap"
	"github.com/mjasion/balena-home/heatexchanger/heartbeat"
	"github.com/mjasion/balena-home/heatexchanger/monitor"
	"github.com/mjasion/balena-home/heatexchanger/pkg/buffer"
	pkgmetrics "github.com/mjasion/balena-home/heatexchanger/pkg/metrics"
	"github.com/mjasion/balena-home/heatexchanger/pkg/profiling"
	"github.com/mjasion/balena-home/heatexchanger/pkg/telemetry"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"github.com/mjasion/balena-home/heatexchanger/publisher"
	"github.com/mjasion/balena-home/heatexchanger/sensor"
	"github.com/mjasion/balena-home/heatexchanger/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("c", "config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Take a single reading and exit")
	list := flag.Bool("list", false, "List attached sensors and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration: "+err.Error())
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger: "+err.Error())
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Debug("Configuration source", zap.String("path", *configPath))
	cfg.PrintConfig(logger)

	override, err := cfg.MockOverride()
	if err != nil {
		logger.Fatal("Invalid mock mode", zap.Error(err))
	}
	mockMode := sensor.DetectMockMode(override, cfg.Sensors.DevicesDir)

	if *list {
		listSensors(cfg.Sensors.DevicesDir, mockMode, logger)
		return
	}

	profiler, err := profiling.Start(&cfg.Profiling, logger)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			logger.Error("Error shutting down profiler", zap.Error(err))
		}
	}()

	otelProviders, err := telemetry.InitProviders(context.Background(), &cfg.OpenTelemetry, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OpenTelemetry providers", zap.Error(err))
	}
	if otelProviders != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProviders.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down OpenTelemetry providers", zap.Error(err))
			}
		}()
	}

	mapping, err := devicemap.Load(cfg.Sensors.DeviceMapping)
	if err != nil {
		logger.Fatal("Failed to load device mapping", zap.Error(err))
	}
	logger.Info("Device mapping loaded", zap.Strings("sensors", mapping.Names()))

	printModeBanner(mockMode, override != nil)

	unit, err := cfg.Unit()
	if err != nil {
		logger.Fatal("Invalid temperature unit", zap.Error(err))
	}
	coll := collector.New(mapping, collector.Options{
		MockMode:         mockMode,
		DevicesDir:       cfg.Sensors.DevicesDir,
		Unit:             unit,
		RejectResetValue: cfg.Sensors.RejectResetValue,
	}, logger)

	instruments, err := telemetry.NewInstruments("heat-exchanger-monitor")
	if err != nil {
		logger.Fatal("Failed to create instruments", zap.Error(err))
	}

	// Sinks
	var (
		sinks    []publisher.Sink
		hub      *publisher.Hub
		natsSink *publisher.NATSSink
		buf      *buffer.RingBuffer[*types.Reading]
		pusher   *pkgmetrics.Pusher
	)
	if cfg.Server.Enabled {
		hub = publisher.NewHub(cfg.Server.SubscriberQueueSize, logger)
		sinks = append(sinks, hub)
	}
	if cfg.Publisher.NATSURL != "" {
		natsSink, err = publisher.NewNATSSink(cfg.Publisher.NATSURL, cfg.Publisher.NATSSubject, logger)
		if err != nil {
			logger.Fatal("Failed to initialize NATS publisher", zap.Error(err))
		}
		sinks = append(sinks, natsSink)
	}
	if cfg.Prometheus.Enabled {
		buf = buffer.New[*types.Reading](cfg.Prometheus.BufferSize, logger)
		pusher = pkgmetrics.New(pkgmetrics.Config{
			URL:               cfg.Prometheus.URL,
			Username:          cfg.Prometheus.Username,
			Password:          cfg.Prometheus.Password,
			PushInterval:      time.Duration(cfg.Prometheus.PushIntervalSeconds) * time.Second,
			BatchSize:         cfg.Prometheus.BatchSize,
			TimeSeriesBuilder: pkgmetrics.BuildHeatExchangerTimeSeries,
		}, buf, logger)
		sinks = append(sinks, publisher.NewMetricsSink(buf))
	}
	pub := publisher.New(logger, sinks...)

	mon := monitor.New(coll, monitor.Config{
		Interval:    cfg.Interval(),
		LogPath:     cfg.Monitor.LogFile,
		Dispatch:    pub.Dispatch,
		Instruments: instruments,
	}, logger)

	logger.Info("Components initialized successfully",
		zap.Bool("mock_mode", mockMode),
		zap.Strings("sinks", pub.Sinks()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		cycle := mon.RunOnce(ctx)
		temps := cycle.Readings.Temperatures()
		for _, name := range temps.Names() {
			fmt.Printf("%s: %.2f%s\n", name, unit.FromCelsius(temps[name]), unit.Symbol())
		}
		fmt.Println("Efficiency: " + cycle.Efficiency.String())
		if pusher != nil {
			pusher.Flush(ctx)
		}
		closeSinks(hub, natsSink, logger)
		return
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		opts := server.Options{Port: cfg.Server.Port, Monitor: mon, Feed: hub}
		if buf != nil {
			opts.Buffer = buf
		}
		srv = server.New(opts, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	if pusher != nil {
		go pusher.Start(ctx)
	}

	var hb *heartbeat.Heartbeat
	if cfg.Heartbeat.URL != "" {
		alive := func() bool { return mon.Alive(time.Now()) }
		hb, err = heartbeat.New(cfg.Heartbeat.URL, cfg.Heartbeat.Period, alive, logger)
		if err != nil {
			logger.Fatal("Failed to initialize heartbeat", zap.Error(err))
		}
		hb.Start()
	}

	logger.Info("Service started", zap.Duration("interval", mon.Interval()))
	if err := mon.Run(ctx); err != nil {
		logger.Error("Monitor error", zap.Error(err))
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if hb != nil {
		hb.Stop(shutdownCtx)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}
	if pusher != nil {
		pusher.Flush(shutdownCtx)
	}
	closeSinks(hub, natsSink, logger)
	logger.Info("Shutdown complete")
}

// loadConfig reads the YAML file when present and falls back to environment
// variables only, so the service can run in a container without a file.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func closeSinks(hub *publisher.Hub, natsSink *publisher.NATSSink, logger *zap.Logger) {
	if hub != nil {
		hub.Close()
	}
	if natsSink != nil {
		if err := natsSink.Close(); err != nil {
			logger.Error("Error closing NATS connection", zap.Error(err))
		}
	}
}

func printModeBanner(mockMode, explicit bool) {
	mode := "HARDWARE MODE"
	if mockMode {
		mode = "MOCK MODE"
	}
	fmt.Printf("\n=== Temperature Collector %s ===\n", mode)
	if mockMode && !explicit {
		fmt.Println("1-Wire driver not found, using simulated sensors")
	}
	if mockMode {
		fmt.Println("Tip: Set environment variable USE_MOCK_SENSORS=false to use real hardware")
	}
}

func listSensors(devicesDir string, mockMode bool, logger *zap.Logger) {
	if mockMode {
		for _, id := range sensor.SimulatedIDs() {
			fmt.Println(sensor.FamilyPrefix + id + " (simulated)")
		}
		return
	}
	ids, err := sensor.Available(devicesDir)
	if err != nil {
		logger.Fatal("Failed to list sensors", zap.Error(err))
	}
	if len(ids) == 0 {
		fmt.Println("No DS18B20 sensors found in " + devicesDir)
		return
	}
	for _, id := range ids {
		fmt.Println(sensor.FamilyPrefix + id)
	}
}
