package realtime

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/model"
)

func reading(deviceID string, voltage float64) model.Reading {
	return model.Reading{DeviceID: deviceID, Timestamp: time.Now(), Voltage: voltage}
}

func receive(t *testing.T, s *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, s *Subscriber) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event for %s", ev.DeviceID)
	default:
	}
}

func TestHubRoutesByDevice(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	subX := NewSubscriber(4)
	subY := NewSubscriber(4)
	hub.Subscribe(subX, "devX")
	hub.Subscribe(subY, "devY")

	hub.Publish("devX", reading("devX", 1))

	ev := receive(t, subX)
	if ev.DeviceID != "devX" {
		t.Errorf("DeviceID: got %q, want devX", ev.DeviceID)
	}
	assertNoEvent(t, subY)
}

func TestHubAllDevicesRoom(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	all := NewSubscriber(4)
	hub.Subscribe(all, AllDevices)

	hub.Publish("devX", reading("devX", 1))
	hub.Publish("devY", reading("devY", 2))

	if ev := receive(t, all); ev.DeviceID != "devX" {
		t.Errorf("first event: got %q, want devX", ev.DeviceID)
	}
	if ev := receive(t, all); ev.DeviceID != "devY" {
		t.Errorf("second event: got %q, want devY", ev.DeviceID)
	}
}

func TestHubNoDoubleDelivery(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	// subscribed both to the device and to all devices: one publish, two sends
	sub := NewSubscriber(4)
	hub.Subscribe(sub, "devX")
	hub.Subscribe(sub, AllDevices)

	hub.Publish("devX", reading("devX", 1))

	receive(t, sub)
	receive(t, sub)
	assertNoEvent(t, sub)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	sub := NewSubscriber(4)
	hub.Subscribe(sub, "devX")
	hub.Subscribe(sub, AllDevices)
	hub.Unsubscribe(sub)

	hub.Publish("devX", reading("devX", 1))
	assertNoEvent(t, sub)
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	var mu sync.Mutex
	drops := 0
	hub.OnDrop(func() {
		mu.Lock()
		drops++
		mu.Unlock()
	})

	sub := NewSubscriber(2)
	hub.Subscribe(sub, "devX")

	hub.Publish("devX", reading("devX", 1))
	hub.Publish("devX", reading("devX", 2))
	hub.Publish("devX", reading("devX", 3))

	mu.Lock()
	if drops != 1 {
		t.Errorf("drops: got %d, want 1", drops)
	}
	mu.Unlock()

	// oldest (voltage 1) was evicted in favor of the newest
	if ev := receive(t, sub); ev.Reading.Voltage != 2 {
		t.Errorf("first queued event: got voltage %v, want 2", ev.Reading.Voltage)
	}
	if ev := receive(t, sub); ev.Reading.Voltage != 3 {
		t.Errorf("second queued event: got voltage %v, want 3", ev.Reading.Voltage)
	}
}

func TestHubPublishToEmptyRoom(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())
	hub.Publish("ghost", reading("ghost", 1)) // must not panic
}

func TestHubConcurrentPublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	hub := NewHub(zap.NewNop().Sugar())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sub := NewSubscriber(1)
		hub.Subscribe(sub, "devX")
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish("devX", reading("devX", float64(j)))
			}
		}()
		go func(s *Subscriber) {
			defer wg.Done()
			hub.Unsubscribe(s)
		}(sub)
	}
	wg.Wait()
}
