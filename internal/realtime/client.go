package realtime

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Client couples one websocket connection to one hub subscriber.
type Client struct {
	conn   *websocket.Conn
	sub    *Subscriber
	hub    *Hub
	userID string
	done   chan struct{}
}

func NewClient(conn *websocket.Conn, hub *Hub, userID string, buffer int) *Client {
	return &Client{
		conn:   conn,
		sub:    NewSubscriber(buffer),
		hub:    hub,
		userID: userID,
		done:   make(chan struct{}),
	}
}

// SubscribeMessage is what viewers send to register interest.
type SubscribeMessage struct {
	Action    string   `json:"action"`
	DeviceIDs []string `json:"device_ids"`
}

// ReadPump consumes subscription requests until the connection drops, then
// detaches the subscriber from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		close(c.done)
		c.conn.Close()
		c.hub.logger.Infow("viewer disconnected", "user", c.userID)
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req SubscribeMessage
		if err := json.Unmarshal(msg, &req); err != nil {
			c.hub.logger.Warnw("bad subscribe message", "user", c.userID, "error", err)
			continue
		}

		switch req.Action {
		case "subscribe":
			for _, deviceID := range req.DeviceIDs {
				if deviceID == "" {
					continue
				}
				c.hub.Subscribe(c.sub, deviceID)
				c.hub.logger.Infow("viewer subscribed", "user", c.userID, "device", deviceID)
			}
		case "subscribe_all":
			c.hub.Subscribe(c.sub, AllDevices)
			c.hub.logger.Infow("viewer subscribed to all devices", "user", c.userID)
		case "unsubscribe":
			c.hub.Unsubscribe(c.sub)
		default:
			c.hub.logger.Warnw("unknown action", "user", c.userID, "action", req.Action)
		}
	}
}

// WritePump streams hub events to the viewer as JSON until the read side
// finishes or a write fails.
func (c *Client) WritePump() {
	for {
		select {
		case ev := <-c.sub.Events():
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Warnw("viewer write failed", "user", c.userID, "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}
