// Package config loads process settings from defaults, an optional file,
// CANVAS_-prefixed environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CANVAS_SERVER_LISTEN_ADDRESS.
const EnvPrefix = "CANVAS"

var ErrUnknownLogFormat = errors.New("unknown log format")

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Client    ClientConfig    `mapstructure:"client"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the relay server.
type ServerConfig struct {
	ListenAddress     string        `mapstructure:"listen_address"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	SnapshotThreshold int           `mapstructure:"snapshot_threshold"`
	SnapshotCapacity  int           `mapstructure:"snapshot_capacity"`
	Advertise         bool          `mapstructure:"advertise"`
	Instance          string        `mapstructure:"instance"`
}

// ClientConfig configures a drawing peer.
type ClientConfig struct {
	// ServerURL is the relay's HTTP root.
	ServerURL    string        `mapstructure:"server_url"`
	CanvasID     string        `mapstructure:"canvas_id"`
	ClientID     string        `mapstructure:"client_id"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	HistoryDepth int           `mapstructure:"history_depth"`
	Color        string        `mapstructure:"color"`
	Width        float64       `mapstructure:"width"`
}

// WebSocketURL derives the relay's websocket endpoint from ServerURL.
func (c ClientConfig) WebSocketURL() string {
	base := strings.TrimSuffix(c.ServerURL, "/")

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	return base + "/ws"
}

// DiscoveryConfig configures mDNS browsing.
type DiscoveryConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewLogger builds the process logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLogFormat, c.Format)
	}
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_address", ":8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.snapshot_threshold", 50)
	v.SetDefault("server.snapshot_capacity", 256)
	v.SetDefault("server.advertise", false)
	v.SetDefault("server.instance", "")

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.canvas_id", "default")
	v.SetDefault("client.client_id", "")
	v.SetDefault("client.max_attempts", 5)
	v.SetDefault("client.retry_delay", time.Second)
	v.SetDefault("client.history_depth", 100)
	v.SetDefault("client.color", "#000000")
	v.SetDefault("client.width", 2.0)

	v.SetDefault("discovery.timeout", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads file when set and decodes the merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}
