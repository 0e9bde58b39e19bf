package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Device status values written by the liveness monitor.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DeviceRegistry is the external device-registry collaborator: the devices
// table is owned by the registry service, this process only lists devices and
// flips their status.
type DeviceRegistry struct {
	mgr    *DBManager
	logger *zap.SugaredLogger
}

func NewDeviceRegistry(mgr *DBManager, logger *zap.SugaredLogger) *DeviceRegistry {
	return &DeviceRegistry{mgr: mgr, logger: logger}
}

// ListDeviceIDs returns the ids of all registered devices of one type.
func (r *DeviceRegistry) ListDeviceIDs(ctx context.Context, deviceType string) ([]string, error) {
	rows, err := r.mgr.Pool().Query(ctx, `
		SELECT id FROM registry.devices WHERE type = $1 ORDER BY id
	`, deviceType)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list devices scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices rows: %w", err)
	}
	return ids, nil
}

// SetDeviceStatus updates one device's online/offline status.
func (r *DeviceRegistry) SetDeviceStatus(ctx context.Context, deviceID, status string) error {
	_, err := r.mgr.Pool().Exec(ctx, `
		UPDATE registry.devices SET status = $2, updated_at = NOW() WHERE id = $1
	`, deviceID, status)
	if err != nil {
		r.logger.Errorw("failed to update device status", "device", deviceID, "status", status, "error", err)
		return fmt.Errorf("set device status: %w", err)
	}
	return nil
}
