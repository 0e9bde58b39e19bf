package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus instruments.
type Metrics struct {
	Ingested      prometheus.Counter
	Malformed     prometheus.Counter
	Duplicates    prometheus.Counter
	StoreErrors   prometheus.Counter
	AcksPublished prometheus.Counter
	FanoutDropped prometheus.Counter
	Reconnects    prometheus.Counter
	BrokerUp      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_readings_ingested_total",
			Help: "Readings validated and durably stored.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_messages_malformed_total",
			Help: "Inbound messages dropped for parse or validation failures.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_messages_duplicate_total",
			Help: "Inbound messages dropped by the dedup strategy.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_store_errors_total",
			Help: "Readings lost to store write failures.",
		}),
		AcksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_acks_published_total",
			Help: "Acknowledgments published back to devices.",
		}),
		FanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_fanout_dropped_total",
			Help: "Live events dropped from full subscriber queues.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_broker_reconnects_total",
			Help: "Broker reconnect attempts.",
		}),
		BrokerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_broker_connected",
			Help: "1 while the broker connection is established.",
		}),
	}

	reg.MustRegister(m.Ingested, m.Malformed, m.Duplicates, m.StoreErrors,
		m.AcksPublished, m.FanoutDropped, m.Reconnects, m.BrokerUp)
	return m
}
