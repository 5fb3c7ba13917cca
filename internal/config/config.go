// Package config loads the multiplexer configuration: server settings and
// the set of peers to connect.
package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

// EnvPrefix prefixes environment overrides, e.g. MCPMUX_SERVER_ADDR
const EnvPrefix = "MCPMUX"

// PeerType selects how a peer is reached
type PeerType string

const (
	PeerStdio     PeerType = "stdio"
	PeerHTTP      PeerType = "http"
	PeerWebSocket PeerType = "websocket"
	PeerEmbedded  PeerType = "embedded"
)

// Defaults
const (
	DefaultAddr           = ":8080"
	DefaultMaxSessions    = 1000
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 60 * time.Second
	DefaultBuiltin        = "calculator"
)

// ServerConfig holds settings for the serving side
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	MaxSessions    int           `mapstructure:"maxSessions"`
	LogLevel       string        `mapstructure:"logLevel"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	// ConfigSchema, if set, is a JSON Schema file that per-session config
	// must satisfy
	ConfigSchema string `mapstructure:"configSchema"`
	// SessionRateLimit is the number of new sessions allowed per second,
	// zero for no limit
	SessionRateLimit float64 `mapstructure:"sessionRateLimit"`
	SessionBurst     int     `mapstructure:"sessionBurst"`
}

// PeerConfig describes one peer. Which fields apply depends on Type.
type PeerConfig struct {
	Type PeerType `mapstructure:"type"`

	// stdio
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Dir     string            `mapstructure:"dir"`

	// http and websocket
	URL     string                 `mapstructure:"url"`
	APIKey  string                 `mapstructure:"apiKey"`
	Profile string                 `mapstructure:"profile"`
	Config  map[string]interface{} `mapstructure:"config"`
	Headers map[string]string      `mapstructure:"headers"`

	// embedded
	Builtin string `mapstructure:"builtin"`
}

// Config is the full configuration
type Config struct {
	Server ServerConfig          `mapstructure:"server"`
	Peers  map[string]PeerConfig `mapstructure:"peers"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.maxSessions", DefaultMaxSessions)
	v.SetDefault("server.logLevel", DefaultLogLevel)
	v.SetDefault("server.requestTimeout", DefaultRequestTimeout)
}

// NewViper returns a viper instance with defaults and environment overrides
// configured
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file at path. An empty path yields the
// defaults with no peers.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}
	if cfg.Peers == nil {
		cfg.Peers = make(map[string]PeerConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks peer names and the fields each peer type requires
func (c *Config) Validate() error {
	if c.Server.MaxSessions < 0 {
		return errors.New("server.maxSessions must not be negative")
	}
	if c.Server.SessionRateLimit < 0 || c.Server.SessionBurst < 0 {
		return errors.New("server.sessionRateLimit and server.sessionBurst must not be negative")
	}

	for name, peer := range c.Peers {
		if err := multiplexer.ValidateNamespace(name); err != nil {
			return errors.Wrapf(err, "peer %q", name)
		}

		switch peer.Type {
		case PeerStdio:
			if peer.Command == "" {
				return errors.Errorf("peer %q: stdio peers require a command", name)
			}
		case PeerHTTP, PeerWebSocket:
			if peer.URL == "" {
				return errors.Errorf("peer %q: %s peers require a url", name, peer.Type)
			}
		case PeerEmbedded:
			builtin := peer.Builtin
			if builtin == "" {
				builtin = DefaultBuiltin
			}
			if _, ok := builtins[builtin]; !ok {
				return errors.Errorf("peer %q: unknown builtin %q", name, builtin)
			}
		case "":
			return errors.Errorf("peer %q: type is required", name)
		default:
			return errors.Errorf("peer %q: unknown type %q", name, peer.Type)
		}
	}
	return nil
}

// LoadConfigSchema reads the JSON Schema named by Server.ConfigSchema. It
// returns nil when none is configured.
func (c *Config) LoadConfigSchema() (map[string]interface{}, error) {
	if c.Server.ConfigSchema == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Server.ConfigSchema)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config schema")
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, errors.Wrapf(err, "error parsing config schema %s", c.Server.ConfigSchema)
	}
	return schema, nil
}
