package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gomqtt-telemetry/internal/config"
	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/metrics"
	"gomqtt-telemetry/internal/mqtt"
	"gomqtt-telemetry/internal/realtime"
	"gomqtt-telemetry/internal/service"
	"gomqtt-telemetry/pkg/dedup"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConnectStore brings up the telemetry store, retrying with exponential
// backoff so the service survives the store starting after it does.
func ConnectStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*db.DBManager, error) {
	var mgr *db.DBManager

	operation := func() error {
		m, err := db.NewDBManager(ctx, cfg, logger)
		if err != nil {
			logger.Warnw("store connection failed, retrying", "error", err)
			return err
		}
		if err := m.Ping(ctx); err != nil {
			logger.Warnw("store ping failed, retrying", "error", err)
			m.Shutdown()
			return err
		}
		mgr = m
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return mgr, nil
}

// NewChannelClient builds the message channel client over the real broker and
// hooks connection state into the metrics.
func NewChannelClient(cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Metrics) (*mqtt.Client, error) {
	tlsCfg, err := cfg.CreateMQTTTLSConfig()
	if err != nil {
		return nil, err
	}

	var channel *mqtt.Client
	broker := mqtt.NewPahoBroker(cfg.MQTT, tlsCfg, func(err error) {
		// paho fires this only after Connect succeeded, channel is set by then
		channel.ConnectionLost(err)
	})
	channel = mqtt.NewClient(broker, mqtt.Config{
		ReconnectDelay: cfg.MQTT.ReconnectDelay,
		MaxAttempts:    cfg.MQTT.MaxAttempts,
		Cooldown:       cfg.MQTT.Cooldown,
	}, logger)

	channel.OnStateChange(func(s mqtt.ConnState) {
		switch s {
		case mqtt.StateConnected:
			m.BrokerUp.Set(1)
		case mqtt.StateConnecting:
			m.Reconnects.Inc()
			m.BrokerUp.Set(0)
		default:
			m.BrokerUp.Set(0)
		}
	})
	return channel, nil
}

// StartIngestApp wires the ingestion pipeline and liveness monitor onto the
// message channel and runs them until a shutdown signal or ctx cancellation.
func StartIngestApp(ctx context.Context, dbMgr *db.DBManager, cfg *config.Config,
	logger *zap.SugaredLogger, channel *mqtt.Client, hub *realtime.Hub, m *metrics.Metrics) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := db.NewIngestStats(logger, 30*time.Minute)
	store := db.NewTelemetryStore(dbMgr, logger)
	registry := db.NewDeviceRegistry(dbMgr, logger)

	ingestor := service.NewIngestor(store, hub, channel, m, stats, logger, service.IngestorConfig{
		TopicPrefix: cfg.MQTT.TopicPrefix,
		AckQoS:      byte(cfg.MQTT.AckQoS),
	})
	if cfg.Dedup.Enabled {
		ingestor.SetDedup(dedup.New(cfg.Dedup.TTL, cfg.Dedup.MaxEntries), dedup.Key)
		logger.Infow("dedup enabled", "ttl", cfg.Dedup.TTL, "max_entries", cfg.Dedup.MaxEntries)
	}
	ingestor.Start(ctx)

	if err := channel.Subscribe(ingestor.DataTopic(), byte(cfg.MQTT.DataQoS), ingestor.HandleMessage); err != nil {
		return err
	}

	liveness := service.NewLivenessMonitor(store, registry, logger,
		cfg.Monitor.Interval, cfg.Monitor.DeviceType)
	go liveness.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		channel.Run(ctx)
	}()

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Infow("signal received, shutting down", "signal", sig)
		cancel()
	case <-done:
		logger.Info("message channel stopped, exiting")
	}

	select {
	case <-done:
		logger.Info("message channel stopped gracefully")
	case <-time.After(30 * time.Second):
		logger.Warn("timeout waiting for message channel to stop")
	}
	ingestor.Wait()
	return nil
}
