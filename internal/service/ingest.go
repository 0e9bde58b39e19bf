package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/metrics"
	"gomqtt-telemetry/internal/model"
)

// ReadingStore is the write side of the telemetry store.
type ReadingStore interface {
	InsertReading(ctx context.Context, r model.Reading) error
}

// FanoutHub receives every durably stored reading for live distribution.
type FanoutHub interface {
	Publish(deviceID string, r model.Reading)
}

// AckPublisher sends acknowledgments back through the message channel.
type AckPublisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// DedupStrategy decides whether an inbound reading is a broker redelivery.
// The zero strategy (nil) processes everything.
type DedupStrategy interface {
	ShouldProcess(key string) bool
}

// DedupKeyFunc derives the dedup key from a parsed reading.
type DedupKeyFunc func(deviceID string, ts time.Time) string

type IngestorConfig struct {
	TopicPrefix string
	AckQoS      byte
	Workers     int
	QueueSize   int
}

// Ingestor turns one inbound broker message into a stored reading, then a
// fan-out event, then an acknowledgment. Messages for the same device
// are processed in arrival order; different devices proceed concurrently on
// separate workers.
type Ingestor struct {
	store    ReadingStore
	hub      FanoutHub
	channel  AckPublisher
	dedup    DedupStrategy
	dedupKey DedupKeyFunc
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	stats    *db.IngestStats
	cfg      IngestorConfig

	queues  []chan inbound
	wg      sync.WaitGroup
	baseCtx context.Context
}

type inbound struct {
	deviceID string
	payload  []byte
	received time.Time
}

func NewIngestor(store ReadingStore, hub FanoutHub, channel AckPublisher,
	m *metrics.Metrics, stats *db.IngestStats, logger *zap.SugaredLogger,
	cfg IngestorConfig) *Ingestor {

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "devices"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Ingestor{
		store:   store,
		hub:     hub,
		channel: channel,
		logger:  logger,
		metrics: m,
		stats:   stats,
		cfg:     cfg,
	}
}

// SetDedup installs a dedup strategy. Must be called before Start.
func (in *Ingestor) SetDedup(strategy DedupStrategy, key DedupKeyFunc) {
	in.dedup = strategy
	in.dedupKey = key
}

// DataTopic is the wildcard subscription covering every device's stream.
func (in *Ingestor) DataTopic() string {
	return in.cfg.TopicPrefix + "/+/data"
}

// Start launches the worker pool. Workers drain their queues until ctx is
// cancelled; Wait blocks until they finish.
func (in *Ingestor) Start(ctx context.Context) {
	in.baseCtx = ctx
	in.queues = make([]chan inbound, in.cfg.Workers)
	for i := range in.queues {
		queue := make(chan inbound, in.cfg.QueueSize)
		in.queues[i] = queue
		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-queue:
					in.process(ctx, msg)
				}
			}
		}()
	}
}

func (in *Ingestor) Wait() {
	in.wg.Wait()
}

// HandleMessage is the broker message handler. Routing hashes the device id
// so one device always lands on the same worker, preserving its arrival
// order while devices fan across workers.
func (in *Ingestor) HandleMessage(topic string, payload []byte) {
	deviceID, ok := deviceIDFromTopic(topic, in.cfg.TopicPrefix)
	if !ok {
		in.logger.Warnw("message on unexpected topic", "topic", topic)
		return
	}

	msg := inbound{deviceID: deviceID, payload: payload, received: time.Now()}
	if in.queues == nil {
		// not started: process inline (tests, simple callers)
		in.process(context.Background(), msg)
		return
	}

	h := fnv.New32a()
	h.Write([]byte(deviceID))
	queue := in.queues[h.Sum32()%uint32(len(in.queues))]
	select {
	case queue <- msg:
	case <-in.baseCtx.Done():
	}
}

func (in *Ingestor) process(ctx context.Context, msg inbound) {
	r, err := model.ParseReading(msg.deviceID, msg.payload, msg.received)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			in.logger.Errorw("reading rejected", "device", msg.deviceID, "fields", vErr.Fields)
		} else {
			in.logger.Errorw("failed to parse telemetry payload", "device", msg.deviceID, "error", err)
		}
		in.metrics.Malformed.Inc()
		in.stats.IncrementMalformed()
		return
	}

	if in.dedup != nil && !in.dedup.ShouldProcess(in.dedupKey(r.DeviceID, r.Timestamp)) {
		in.logger.Debugw("duplicate reading dropped", "device", r.DeviceID, "ts", r.Timestamp)
		in.metrics.Duplicates.Inc()
		return
	}

	// The store write gates everything: no fan-out and no ack until the
	// reading is durable, so the device retransmits on a lost write.
	if err := in.store.InsertReading(ctx, r); err != nil {
		in.logger.Errorw("failed to store reading", "device", r.DeviceID, "ts", r.Timestamp, "error", err)
		in.metrics.StoreErrors.Inc()
		in.stats.IncrementFailed()
		return
	}
	in.metrics.Ingested.Inc()
	in.stats.IncrementStored()

	in.hub.Publish(r.DeviceID, r)

	ackTopic := in.cfg.TopicPrefix + "/" + r.DeviceID + "/ack"
	if err := in.channel.Publish(ackTopic, in.cfg.AckQoS, []byte("OK")); err == nil {
		in.metrics.AcksPublished.Inc()
	}
	// ack failures are already logged by the channel client; never retried
}

// deviceIDFromTopic extracts the device id from `<prefix>/<deviceId>/data`.
// Identity always comes from the topic, never the payload.
func deviceIDFromTopic(topic, prefix string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != prefix || parts[2] != "data" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
