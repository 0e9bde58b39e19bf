package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr: got %q", cfg.HTTP.Addr)
	}
	if cfg.MQTT.TopicPrefix != "devices" {
		t.Errorf("topic prefix: got %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.AckQoS != 1 || cfg.MQTT.DataQoS != 1 {
		t.Errorf("qos defaults: got ack=%d data=%d", cfg.MQTT.AckQoS, cfg.MQTT.DataQoS)
	}
	if cfg.MQTT.ConnectTimeout != 8*time.Second {
		t.Errorf("connect timeout: got %v", cfg.MQTT.ConnectTimeout)
	}
	if cfg.MQTT.ReconnectDelay != 3*time.Second {
		t.Errorf("reconnect delay: got %v", cfg.MQTT.ReconnectDelay)
	}
	if cfg.MQTT.MaxAttempts != 10 {
		t.Errorf("max attempts: got %d", cfg.MQTT.MaxAttempts)
	}
	if cfg.MQTT.Cooldown != time.Minute {
		t.Errorf("cooldown: got %v", cfg.MQTT.Cooldown)
	}
	if cfg.Monitor.Interval != 5*time.Minute {
		t.Errorf("monitor interval: got %v", cfg.Monitor.Interval)
	}
	if cfg.Hub.SubscriberBuffer != 256 {
		t.Errorf("subscriber buffer: got %d", cfg.Hub.SubscriberBuffer)
	}
	if cfg.Dedup.Enabled {
		t.Error("dedup enabled by default")
	}

	if cfg.DB.URL != "postgresql://postgres:@localhost:5432/telemetry" {
		t.Errorf("composed db url: got %q", cfg.DB.URL)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "iot-backend-") {
		t.Errorf("generated client id: got %q", cfg.MQTT.ClientID)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  addr: ":9090"
mqtt:
  broker_url: "ssl://broker.example.com:8883"
  client_id: "backend-1"
  topic_prefix: "iot"
  reconnect_delay: 1s
db:
  url: "postgresql://user:pw@dbhost:5432/iot"
dedup:
  enabled: true
  ttl: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("http addr: got %q", cfg.HTTP.Addr)
	}
	if cfg.MQTT.BrokerURL != "ssl://broker.example.com:8883" {
		t.Errorf("broker url: got %q", cfg.MQTT.BrokerURL)
	}
	if cfg.MQTT.ClientID != "backend-1" {
		t.Errorf("client id: got %q", cfg.MQTT.ClientID)
	}
	if cfg.MQTT.TopicPrefix != "iot" {
		t.Errorf("topic prefix: got %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.ReconnectDelay != time.Second {
		t.Errorf("reconnect delay: got %v", cfg.MQTT.ReconnectDelay)
	}
	if cfg.DB.URL != "postgresql://user:pw@dbhost:5432/iot" {
		t.Errorf("db url: got %q", cfg.DB.URL)
	}
	if !cfg.Dedup.Enabled || cfg.Dedup.TTL != 30*time.Second {
		t.Errorf("dedup: got enabled=%v ttl=%v", cfg.Dedup.Enabled, cfg.Dedup.TTL)
	}

	// values absent from the file keep their defaults
	if cfg.MQTT.MaxAttempts != 10 {
		t.Errorf("max attempts default: got %d", cfg.MQTT.MaxAttempts)
	}
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
