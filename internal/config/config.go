package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	DB      DBConfig      `mapstructure:"db"`
	Hub     HubConfig     `mapstructure:"hub"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MQTTConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ClientID       string        `mapstructure:"client_id"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	AckQoS         int           `mapstructure:"ack_qos"`
	DataQoS        int           `mapstructure:"data_qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	CACert         string        `mapstructure:"ca_cert"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	CACert   string `mapstructure:"ca_cert"`
}

type HubConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

type MonitorConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	DeviceType string        `mapstructure:"device_type"`
}

type DedupConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// LoadConfig reads config.yaml (when present) with env-var overrides.
// A .env file is loaded first so local runs behave like deployed ones.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load() // ignore error, fallback to env vars

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DB.URL == "" {
		cfg.DB.URL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%s/%s",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = fmt.Sprintf("iot-backend-%d", time.Now().Unix())
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.jwt_secret", "")

	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_prefix", "devices")
	v.SetDefault("mqtt.ack_qos", 1)
	v.SetDefault("mqtt.data_qos", 1)
	v.SetDefault("mqtt.connect_timeout", 8*time.Second)
	v.SetDefault("mqtt.reconnect_delay", 3*time.Second)
	v.SetDefault("mqtt.max_attempts", 10)
	v.SetDefault("mqtt.cooldown", time.Minute)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "telemetry")

	v.SetDefault("hub.subscriber_buffer", 256)

	v.SetDefault("monitor.interval", 5*time.Minute)
	v.SetDefault("monitor.device_type", "sensor")

	v.SetDefault("dedup.enabled", false)
	v.SetDefault("dedup.ttl", 10*time.Minute)
	v.SetDefault("dedup.max_entries", 10000)
}
