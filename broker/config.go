// Package broker owns the AMQP side of the pipeline: server configuration,
// the connection lifecycle, the error taxonomy, and the message body codecs.
package broker

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the broker connection parameters, loaded from a TOML
// file and immutable afterwards.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Exchange string `toml:"exchange"`
	// ConnectionAttempts bounds the connect retry loop. Minimum 1.
	ConnectionAttempts int `toml:"connection_attempts"`
	// RetryDelay is the pause between connect attempts, in seconds.
	RetryDelay int `toml:"retry_delay"`
	// Heartbeat is the AMQP heartbeat interval in seconds. 0 disables.
	Heartbeat int `toml:"heartbeat"`
}

// DefaultServerConfig returns the configuration used when a key is absent
// from the config file.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "localhost",
		Port:               5672,
		User:               "guest",
		Password:           "guest",
		Exchange:           "broadcast",
		ConnectionAttempts: 3,
		RetryDelay:         1,
		Heartbeat:          0,
	}
}

// ParseServerConfig decodes TOML data over the defaults. Unknown keys are
// rejected to catch typos early.
func ParseServerConfig(data []byte) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("invalid broker config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("unknown keys in broker config: %s", strings.Join(keys, ", "))
	}
	if cfg.ConnectionAttempts < 1 {
		return cfg, fmt.Errorf("connection_attempts must be >= 1, got %d", cfg.ConnectionAttempts)
	}
	if cfg.RetryDelay < 0 {
		return cfg, fmt.Errorf("retry_delay must be >= 0, got %d", cfg.RetryDelay)
	}
	return cfg, nil
}

// LoadServerConfig reads and parses a TOML broker config file.
// Callers that support ${VAR} expansion expand the contents before calling
// ParseServerConfig directly.
func LoadServerConfig(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ServerConfig{}, fmt.Errorf("broker config file not found: %s", path)
		}
		return ServerConfig{}, fmt.Errorf("cannot read broker config %q: %w", path, err)
	}
	return ParseServerConfig(data)
}
