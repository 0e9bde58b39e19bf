package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"gomqtt-telemetry/internal/app"
	"gomqtt-telemetry/internal/config"
	"gomqtt-telemetry/internal/metrics"
	"gomqtt-telemetry/internal/monitor"
	"gomqtt-telemetry/internal/realtime"
)

func main() {
	logger, _ := zap.NewProduction(zap.AddStacktrace(zap.FatalLevel))
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		sugar.Fatalw("failed to load config", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// --- Initialize store ---
	dbMgr, err := app.ConnectStore(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to connect to store", "error", err)
	}
	defer dbMgr.Shutdown()

	// --- Fan-out hub ---
	hub := realtime.NewHub(sugar)
	hub.OnDrop(m.FanoutDropped.Inc)

	// --- Message channel client ---
	channel, err := app.NewChannelClient(cfg, sugar, m)
	if err != nil {
		sugar.Fatalw("failed to build message channel client", "error", err)
	}

	// --- Start Health Check ---
	monitor.StartHealthCheck(dbMgr, channel, hub, reg, sugar,
		cfg.HTTP.JWTSecret, cfg.Hub.SubscriberBuffer, cfg.HTTP.Addr)

	// --- Run ingestion app (blocking) ---
	if err := app.StartIngestApp(ctx, dbMgr, cfg, sugar, channel, hub, m); err != nil {
		sugar.Fatalw("ingest app stopped with error", "error", err)
	}
}
