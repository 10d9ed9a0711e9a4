package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rctgcs/internal/comms"
	"rctgcs/internal/config"
	"rctgcs/internal/events"
	"rctgcs/internal/logging"
	"rctgcs/internal/sim"
	"rctgcs/internal/transport"
)

func main() {
	configPath := flag.String("config", "payloadsim.yaml", "path to the configuration file")
	txLat := flag.Float64("tx-lat", 32.8847, "simulated collar latitude")
	txLon := flag.Float64("tx-lon", -117.2350, "simulated collar longitude")
	txFreq := flag.Uint("tx-freq", 173_500_000, "simulated collar frequency in Hz")
	txPower := flag.Float64("tx-power", 40.0, "simulated collar power in dBm at 1 m")
	flag.Parse()

	if err := run(*configPath, sim.Transmitter{
		Lat:      *txLat,
		Lon:      *txLon,
		PowerDbm: *txPower,
		Exponent: 2.0,
		FreqHz:   uint32(*txFreq),
	}); err != nil {
		slog.Error("payloadsim exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, collar sim.Transmitter) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logManager := logging.NewManager()
	if err := logManager.Configure(cfg.Logging); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logManager.Close()
	logger := logManager.Logger("payloadsim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx, err := transport.FromConfig(cfg.Connection)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	options, err := comms.NewOptions(comms.ScopeEngineering)
	if err != nil {
		return err
	}
	options.Base = comms.BaseOptions{
		CenterFreqHz:   collar.FreqHz,
		SamplingFreqHz: 2_000_000,
		GainDb:         20.0,
	}
	options.Expert = comms.ExpertOptions{
		PingWidthMs: 36,
		PingSNR:     0.1,
		PingMaxLen:  1.5,
		PingMinLen:  0.5,
	}
	options.Engineering = comms.EngineeringOptions{
		GPSBaud:   9600,
		GPSDevice: "/dev/ttyUSB0",
	}

	payload := sim.New(logManager.Logger("sim"), tx, sim.Config{
		Frequencies: []uint32{collar.FreqHz},
		Options:     options,
	})
	if err := payload.Start(); err != nil {
		return fmt.Errorf("start payload session: %w", err)
	}
	defer payload.Stop()

	logger.Info("payload simulator running",
		"connector", string(cfg.Connection.Connector),
		"collar_freq", collar.FreqHz,
		"collar_lat", collar.Lat,
		"collar_lon", collar.Lon)

	fly(ctx, logger, payload, collar)
	logger.Info("shutting down")
	return nil
}

// fly walks a survey rectangle around the collar, reporting the vehicle
// position every second and a collar ping every step while the mission
// software is running.
func fly(ctx context.Context, logger *slog.Logger, payload *sim.Simulator, collar sim.Transmitter) {
	const (
		step = 1 * time.Second
		alt  = 30.0
	)
	flight := &sim.Flight{
		Waypoints: []sim.Waypoint{
			{Lat: collar.Lat - 0.002, Lon: collar.Lon - 0.002, Alt: alt},
			{Lat: collar.Lat - 0.002, Lon: collar.Lon + 0.002, Alt: alt},
			{Lat: collar.Lat + 0.002, Lon: collar.Lon + 0.002, Alt: alt},
			{Lat: collar.Lat + 0.002, Lon: collar.Lon - 0.002, Alt: alt},
			{Lat: collar.Lat - 0.002, Lon: collar.Lon - 0.002, Alt: alt},
		},
		SpeedMps: 15,
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pos := flight.Step(step, now)
			if err := payload.SendVehicle(pos); err != nil {
				logger.Warn("vehicle send failed", "error", err)
			}
			if payload.SystemState() != events.SystemStart {
				continue
			}
			ping := collar.PingAt(pos.Lat, pos.Lon, pos.Alt, now)
			if err := payload.SendPing(ping); err != nil {
				logger.Warn("ping send failed", "error", err)
			}
		}
	}
}
