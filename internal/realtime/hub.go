package realtime

import (
	"sync"

	"go.uber.org/zap"

	"gomqtt-telemetry/internal/model"
)

// AllDevices subscribes a viewer to every device's stream.
const AllDevices = "*"

// Event is one stored reading fanned out to live viewers.
type Event struct {
	DeviceID string        `json:"deviceId"`
	Reading  model.Reading `json:"reading"`
}

// Subscriber is one viewer's attachment to the hub. Its event channel is
// bounded; when a viewer falls behind, the oldest undelivered event is
// dropped in favor of the newest. There is no replay.
type Subscriber struct {
	events chan Event
}

func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 256
	}
	return &Subscriber{events: make(chan Event, buffer)}
}

// Events is the subscriber's receive side. The channel is never closed by the
// hub; consumers stop reading when they detach.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub broadcasts new readings to live subscribers, partitioned by device.
// Publishing never blocks on a slow subscriber.
type Hub struct {
	mu sync.RWMutex

	// room mapping: device -> subscribers (AllDevices is its own room)
	rooms map[string]map[*Subscriber]bool

	// reverse mapping: subscriber -> subscribed rooms
	subRooms map[*Subscriber]map[string]bool

	logger *zap.SugaredLogger
	onDrop func()
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Subscriber]bool),
		subRooms: make(map[*Subscriber]map[string]bool),
		logger:   logger,
	}
}

// OnDrop registers a callback invoked once per event dropped from a full
// subscriber queue. Must be set before the hub is shared.
func (h *Hub) OnDrop(fn func()) {
	h.onDrop = fn
}

// Subscribe registers interest in one device's stream, or all devices.
func (h *Hub) Subscribe(s *Subscriber, deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[deviceID] == nil {
		h.rooms[deviceID] = make(map[*Subscriber]bool)
	}
	h.rooms[deviceID][s] = true

	if h.subRooms[s] == nil {
		h.subRooms[s] = make(map[string]bool)
	}
	h.subRooms[s][deviceID] = true
}

// Unsubscribe detaches a subscriber from every room. After it returns, no
// further events are delivered to the subscriber.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.subRooms[s] {
		delete(h.rooms[room], s)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.subRooms, s)
}

// Publish fans one reading out to the device's room and the all-devices room.
// Asynchronous relative to the caller: a full subscriber queue drops its
// oldest event rather than blocking ingestion.
func (h *Hub) Publish(deviceID string, r model.Reading) {
	ev := Event{DeviceID: deviceID, Reading: r}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[deviceID] {
		h.deliver(sub, ev)
	}
	for sub := range h.rooms[AllDevices] {
		h.deliver(sub, ev)
	}
}

func (h *Hub) deliver(s *Subscriber, ev Event) {
	select {
	case s.events <- ev:
		return
	default:
	}

	// queue full: evict the oldest, then try once more
	select {
	case <-s.events:
		if h.onDrop != nil {
			h.onDrop()
		}
	default:
	}
	select {
	case s.events <- ev:
	default:
		if h.onDrop != nil {
			h.onDrop()
		}
	}
}
