package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/model"
)

// LatestStore is the single store read the liveness monitor needs.
type LatestStore interface {
	LatestReading(ctx context.Context, deviceID string) (model.Reading, error)
}

// DeviceRegistry is the external registry collaborator.
type DeviceRegistry interface {
	ListDeviceIDs(ctx context.Context, deviceType string) ([]string, error)
	SetDeviceStatus(ctx context.Context, deviceID, status string) error
}

// LivenessMonitor keeps each device's online/offline status consistent with
// whether it is actively reporting usable data. "Online" means the latest
// reading exists and every required channel is finite; a connected device
// sending corrupt data is offline.
type LivenessMonitor struct {
	store      LatestStore
	registry   DeviceRegistry
	logger     *zap.SugaredLogger
	interval   time.Duration
	deviceType string
}

func NewLivenessMonitor(store LatestStore, registry DeviceRegistry,
	logger *zap.SugaredLogger, interval time.Duration, deviceType string) *LivenessMonitor {

	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if deviceType == "" {
		deviceType = "sensor"
	}
	return &LivenessMonitor{
		store:      store,
		registry:   registry,
		logger:     logger,
		interval:   interval,
		deviceType: deviceType,
	}
}

// Run checks all devices once immediately, then on every tick until ctx is
// cancelled. Individual failures never abort a cycle or escape the monitor.
func (m *LivenessMonitor) Run(ctx context.Context) {
	m.CheckAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll runs one full cycle over every registered device of the monitored
// type. Every device is attempted regardless of earlier failures.
func (m *LivenessMonitor) CheckAll(ctx context.Context) {
	ids, err := m.registry.ListDeviceIDs(ctx, m.deviceType)
	if err != nil {
		m.logger.Errorw("failed to list devices", "type", m.deviceType, "error", err)
		return
	}

	for _, id := range ids {
		m.checkDevice(ctx, id)
	}
}

func (m *LivenessMonitor) checkDevice(ctx context.Context, deviceID string) {
	status := db.StatusOffline

	r, err := m.store.LatestReading(ctx, deviceID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		// never reported: offline
	case err != nil:
		m.logger.Errorw("failed to read latest reading", "device", deviceID, "error", err)
	case r.HasUsableChannels():
		status = db.StatusOnline
	}

	if err := m.registry.SetDeviceStatus(ctx, deviceID, status); err != nil {
		m.logger.Errorw("failed to update device status", "device", deviceID, "status", status, "error", err)
	}
}
