package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/model"
)

type fakeLatestStore struct {
	readings map[string]model.Reading
	errs     map[string]error
}

func (s *fakeLatestStore) LatestReading(ctx context.Context, deviceID string) (model.Reading, error) {
	if err, ok := s.errs[deviceID]; ok {
		return model.Reading{}, err
	}
	r, ok := s.readings[deviceID]
	if !ok {
		return model.Reading{}, db.ErrNotFound
	}
	return r, nil
}

type fakeRegistry struct {
	mu       sync.Mutex
	ids      []string
	listErr  error
	typeGot  string
	statuses map[string]string
	setErrs  map[string]error
}

func (r *fakeRegistry) ListDeviceIDs(ctx context.Context, deviceType string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typeGot = deviceType
	return r.ids, r.listErr
}

func (r *fakeRegistry) SetDeviceStatus(ctx context.Context, deviceID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.setErrs[deviceID]; ok {
		return err
	}
	if r.statuses == nil {
		r.statuses = make(map[string]string)
	}
	r.statuses[deviceID] = status
	return nil
}

func (r *fakeRegistry) status(deviceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[deviceID]
}

func usableReading(deviceID string) model.Reading {
	return model.Reading{
		DeviceID: deviceID, Timestamp: time.Now(),
		Voltage: 230, Temperature: 40, Vibration: 0.1,
		SingalPCurrent: 1, APhaseCurrent: 1, BPhaseCurrent: 1, CPhaseCurrent: 1,
	}
}

func newMonitor(store *fakeLatestStore, registry *fakeRegistry) *LivenessMonitor {
	return NewLivenessMonitor(store, registry, zap.NewNop().Sugar(), time.Hour, "sensor")
}

func TestMonitorMarksReportingDeviceOnline(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{readings: map[string]model.Reading{"dev1": usableReading("dev1")}}
	registry := &fakeRegistry{ids: []string{"dev1"}}

	newMonitor(store, registry).CheckAll(context.Background())

	if got := registry.status("dev1"); got != db.StatusOnline {
		t.Errorf("dev1 status: got %q, want %q", got, db.StatusOnline)
	}
	if registry.typeGot != "sensor" {
		t.Errorf("device type filter: got %q, want sensor", registry.typeGot)
	}
}

func TestMonitorMarksSilentDeviceOffline(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{readings: map[string]model.Reading{}}
	registry := &fakeRegistry{ids: []string{"dev1"}}

	newMonitor(store, registry).CheckAll(context.Background())

	if got := registry.status("dev1"); got != db.StatusOffline {
		t.Errorf("dev1 status: got %q, want %q", got, db.StatusOffline)
	}
}

func TestMonitorMarksNonFiniteDeviceOffline(t *testing.T) {
	t.Parallel()
	r := usableReading("dev1")
	r.Temperature = math.NaN()
	store := &fakeLatestStore{readings: map[string]model.Reading{"dev1": r}}
	registry := &fakeRegistry{ids: []string{"dev1"}}

	newMonitor(store, registry).CheckAll(context.Background())

	if got := registry.status("dev1"); got != db.StatusOffline {
		t.Errorf("dev1 status: got %q, want %q", got, db.StatusOffline)
	}
}

func TestMonitorMarksOfflineOnStoreError(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{errs: map[string]error{"dev1": errors.New("timeout")}}
	registry := &fakeRegistry{ids: []string{"dev1"}}

	newMonitor(store, registry).CheckAll(context.Background())

	if got := registry.status("dev1"); got != db.StatusOffline {
		t.Errorf("dev1 status: got %q, want %q", got, db.StatusOffline)
	}
}

func TestMonitorContinuesAfterUpdateFailure(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{readings: map[string]model.Reading{
		"dev1": usableReading("dev1"),
		"dev2": usableReading("dev2"),
	}}
	registry := &fakeRegistry{
		ids:     []string{"dev1", "dev2"},
		setErrs: map[string]error{"dev1": errors.New("deadlock")},
	}

	newMonitor(store, registry).CheckAll(context.Background())

	if got := registry.status("dev2"); got != db.StatusOnline {
		t.Errorf("dev2 status after dev1 failure: got %q, want %q", got, db.StatusOnline)
	}
}

func TestMonitorSkipsCycleOnListFailure(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{}
	registry := &fakeRegistry{listErr: errors.New("unavailable")}

	newMonitor(store, registry).CheckAll(context.Background())

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.statuses) != 0 {
		t.Errorf("statuses written despite list failure: %v", registry.statuses)
	}
}

func TestMonitorRunChecksImmediately(t *testing.T) {
	t.Parallel()
	store := &fakeLatestStore{readings: map[string]model.Reading{"dev1": usableReading("dev1")}}
	registry := &fakeRegistry{ids: []string{"dev1"}}
	m := newMonitor(store, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for registry.status("dev1") == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := registry.status("dev1"); got != db.StatusOnline {
		t.Errorf("status after first cycle: got %q, want %q", got, db.StatusOnline)
	}

	cancel()
	<-done
}
