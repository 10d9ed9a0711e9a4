package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rctgcs/internal/bus"
	"rctgcs/internal/comms"
	"rctgcs/internal/config"
	"rctgcs/internal/estimate"
	"rctgcs/internal/events"
	"rctgcs/internal/logging"
	"rctgcs/internal/model"
	"rctgcs/internal/persistence"
	"rctgcs/internal/transport"
)

func main() {
	configPath := flag.String("config", "rctgcs.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("gcs exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logManager := logging.NewManager()
	if err := logManager.Configure(cfg.Logging); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logManager.Close()
	logger := logManager.Logger("gcs")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx, err := transport.FromConfig(cfg.Connection)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	db, err := persistence.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open mission database: %w", err)
	}
	defer db.Close()

	b := bus.New(logManager.Logger("bus"))
	defer b.Close()

	session := comms.NewGCSSession(logManager.Logger("comms"), tx)
	session.SetWatchdogInterval(cfg.Timeouts.Watchdog)

	m := model.New(logger, b, session, estimate.NewDataManager(), cfg.Timeouts.Command)
	m.AttachStorage(persistence.NewPingRepo(db), persistence.NewTrackRepo(db))

	logger.Info("waiting for payload heartbeat", "connector", string(cfg.Connection.Connector), "timeout", cfg.Timeouts.HeartbeatWait)
	if err := m.Start(cfg.Timeouts.HeartbeatWait); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer m.Stop()

	watch(ctx, logger, b, m, cfg)
	logger.Info("shutting down")
	return nil
}

// watch is the headless frontend: it logs bus events until the context is
// canceled.
func watch(ctx context.Context, logger *slog.Logger, b bus.MessageBus, m *model.Model, cfg config.Config) {
	topics := []string{
		events.TopicConnStatus,
		events.TopicHeartbeat,
		events.TopicNoHeartbeat,
		events.TopicException,
		events.TopicFrequencies,
		events.TopicUpgradeStatus,
		events.TopicNewPing,
		events.TopicNewEstimate,
		events.TopicVehicle,
		events.TopicCone,
	}
	sub := b.Subscribe(topics...)

	for {
		select {
		case <-ctx.Done():
			b.Unsubscribe(sub, topics...)
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			logEvent(logger, m, cfg, msg)
		}
	}
}

func logEvent(logger *slog.Logger, m *model.Model, cfg config.Config, msg any) {
	switch ev := msg.(type) {
	case events.ConnStatus:
		logger.Info("connection", "state", string(ev.State), "error", ev.Err)
	case events.HeartbeatEvent:
		logger.Debug("heartbeat",
			"system", ev.SystemState.String(),
			"sdr", ev.SDRState.String(),
			"sensor", ev.SensorState.String(),
			"storage", ev.StorageState.String())
	case events.ExceptionEvent:
		logger.Error("payload exception", "exception", ev.Exception)
	case events.FrequenciesEvent:
		logger.Info("target frequencies", "frequencies", ev.Frequencies)
	case events.UpgradeStatusEvent:
		logger.Info("upgrade status", "state", ev.State, "message", ev.Message)
	case events.PingEvent:
		logger.Info("ping",
			"freq", ev.Ping.Freq,
			"power", ev.Ping.Power,
			"count", len(m.Pings(ev.Ping.Freq)))
	case events.EstimateEvent:
		logger.Info("estimate",
			"freq", ev.Freq,
			"easting", ev.Estimate.Easting,
			"northing", ev.Estimate.Northing,
			"stale", ev.Estimate.Stale)
		if hm, err := m.Precision(ev.Freq, cfg.Estimator.GridSize, cfg.Estimator.CellSizeM); err == nil {
			r, c := hm.Prob.Dims()
			logger.Debug("precision grid", "freq", ev.Freq, "rows", r, "cols", c, "cell_m", hm.CellSize)
		}
	case events.VehicleEvent:
		logger.Debug("vehicle", "lat", ev.Position.Lat, "lon", ev.Position.Lon, "heading", ev.Position.Heading)
	case events.ConeEvent:
		logger.Debug("cone", "heading", ev.Heading, "power", ev.Power)
	}
}
