// Package config handles the optional YAML defaults file for reporter run.
package config

import (
	"fmt"
	"time"
)

// Config represents a reporter.yaml configuration file.
// All values are optional and act as defaults for reporter run flags.
// CLI flags always override config values.
type Config struct {
	Sink               string   `yaml:"sink"`
	FilesPath          string   `yaml:"files_path"`
	Codec              string   `yaml:"codec"`
	PacketLayout       string   `yaml:"packet_layout"`
	RabbitMQConfigFile string   `yaml:"rabbitmq_config_file"`
	LogLevel           string   `yaml:"log_level"`
	LogFile            string   `yaml:"log_file"`
	Timeout            int      `yaml:"timeout"`
	Pacing             Duration `yaml:"pacing"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10us" or "1ms".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
