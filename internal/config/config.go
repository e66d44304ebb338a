// Package config loads bridge settings from configs/config.yml, TEMPEST_* environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults match the values the weewx driver installs with.
const (
	DefaultEndpoint          = "wss://ws.weatherflow.com/swd/data"
	DefaultTokenParam        = "token"
	DefaultReconnectInterval = 20 // seconds
	DefaultReceiveTimeout    = 90 * time.Second
	DefaultAckTimeout        = 10 * time.Second
	DefaultFieldMapVersion   = "v2"
	DefaultHTTPPort          = "8080"
	DefaultDBPath            = "tempest.db"
	DefaultMQTTQoS           = 1

	envPrefix = "TEMPEST"
)

// Accepted credential query parameter names.
const (
	TokenParamToken  = "token"
	TokenParamAPIKey = "api_key"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Feed  FeedConfig  `mapstructure:"feed"`
	Log   LogConfig   `mapstructure:"log"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	DB    DBConfig    `mapstructure:"db"`
	Sinks SinksConfig `mapstructure:"sinks"`
}

// FeedConfig describes the upstream websocket subscription.
type FeedConfig struct {
	Endpoint          string         `mapstructure:"tempest_ws_endpoint"`
	PersonalToken     string         `mapstructure:"personal_token"`
	TokenParam        string         `mapstructure:"token_param"` // token | api_key
	DeviceID          string         `mapstructure:"tempest_device_id"`
	StationID         string         `mapstructure:"tempest_station_id"`
	ReconnectInterval int            `mapstructure:"reconnect_sleep_interval"` // seconds
	MaxRetries        int            `mapstructure:"max_retries"`              // 0 = unbounded
	ReceiveTimeout    time.Duration  `mapstructure:"receive_timeout"`
	AckTimeout        time.Duration  `mapstructure:"ack_timeout"`
	FieldMapVersion   string         `mapstructure:"field_map_version"`
	FieldOverrides    map[string]int `mapstructure:"field_overrides"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      string `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// SinksConfig lists optional record forwarders; an empty address disables a sink.
type SinksConfig struct {
	MQTT  MQTTSinkConfig  `mapstructure:"mqtt"`
	NATS  NATSSinkConfig  `mapstructure:"nats"`
	Kafka KafkaSinkConfig `mapstructure:"kafka"`
}

type MQTTSinkConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      int    `mapstructure:"qos"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type NATSSinkConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaSinkConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ReconnectBackoff returns the configured sleep between reconnect attempts.
func (f FeedConfig) ReconnectBackoff() time.Duration {
	return time.Duration(f.ReconnectInterval) * time.Second
}

// Load reads configuration. An empty path looks for configs/config.yml and falls back
// to defaults plus environment when that file does not exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.tempest_ws_endpoint", DefaultEndpoint)
	v.SetDefault("feed.personal_token", "")
	v.SetDefault("feed.token_param", DefaultTokenParam)
	v.SetDefault("feed.tempest_device_id", "")
	v.SetDefault("feed.tempest_station_id", "")
	v.SetDefault("feed.reconnect_sleep_interval", DefaultReconnectInterval)
	v.SetDefault("feed.max_retries", 0)
	v.SetDefault("feed.receive_timeout", DefaultReceiveTimeout)
	v.SetDefault("feed.ack_timeout", DefaultAckTimeout)
	v.SetDefault("feed.field_map_version", DefaultFieldMapVersion)
	v.SetDefault("feed.field_overrides", map[string]int{})

	v.SetDefault("log.level", "info")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.jwt_secret", "")

	v.SetDefault("db.path", DefaultDBPath)

	v.SetDefault("sinks.mqtt.broker", "")
	v.SetDefault("sinks.mqtt.client_id", "tempest-bridge")
	v.SetDefault("sinks.mqtt.topic", "weather/tempest/observations")
	v.SetDefault("sinks.mqtt.qos", DefaultMQTTQoS)
	v.SetDefault("sinks.mqtt.username", "")
	v.SetDefault("sinks.mqtt.password", "")
	v.SetDefault("sinks.nats.url", "")
	v.SetDefault("sinks.nats.subject", "weather.tempest.observations")
	v.SetDefault("sinks.kafka.brokers", []string{})
	v.SetDefault("sinks.kafka.topic", "tempest-observations")
}

func (c *Config) normalize() {
	c.Feed.Endpoint = strings.TrimSpace(c.Feed.Endpoint)
	c.Feed.PersonalToken = strings.TrimSpace(c.Feed.PersonalToken)
	c.Feed.TokenParam = strings.ToLower(strings.TrimSpace(c.Feed.TokenParam))
	c.Feed.DeviceID = strings.TrimSpace(c.Feed.DeviceID)
	c.Feed.StationID = strings.TrimSpace(c.Feed.StationID)
	c.Feed.FieldMapVersion = strings.TrimSpace(c.Feed.FieldMapVersion)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	u, err := url.Parse(c.Feed.Endpoint)
	switch {
	case c.Feed.Endpoint == "":
		add("feed.tempest_ws_endpoint is required")
	case err != nil:
		add("feed.tempest_ws_endpoint: %v", err)
	case u.Scheme != "ws" && u.Scheme != "wss":
		add("feed.tempest_ws_endpoint must use ws or wss, got %q", u.Scheme)
	}
	if c.Feed.PersonalToken == "" {
		add("feed.personal_token is required")
	}
	if c.Feed.TokenParam != TokenParamToken && c.Feed.TokenParam != TokenParamAPIKey {
		add("feed.token_param must be %q or %q, got %q", TokenParamToken, TokenParamAPIKey, c.Feed.TokenParam)
	}
	if !isNumericID(c.Feed.DeviceID) {
		add("feed.tempest_device_id must be a numeric id, got %q", c.Feed.DeviceID)
	}
	if !isNumericID(c.Feed.StationID) {
		add("feed.tempest_station_id must be a numeric id, got %q", c.Feed.StationID)
	}
	if c.Feed.ReconnectInterval < 1 {
		add("feed.reconnect_sleep_interval must be >= 1 (seconds)")
	}
	if c.Feed.MaxRetries < 0 {
		add("feed.max_retries must be >= 0 (0 = unbounded)")
	}
	if c.Feed.ReceiveTimeout <= 0 {
		add("feed.receive_timeout must be > 0")
	}
	if c.Feed.AckTimeout <= 0 {
		add("feed.ack_timeout must be > 0")
	}
	if c.Feed.FieldMapVersion == "" {
		add("feed.field_map_version is required")
	}
	if q := c.Sinks.MQTT.QoS; q < 0 || q > 2 {
		add("sinks.mqtt.qos must be 0, 1 or 2")
	}
	return errors.Join(errs...)
}

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
