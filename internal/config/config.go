// Package config loads and validates harrowd's server configuration.
// Grounded on the teacher's config.go (required-key checking, parsed
// alternate representations for durations), but replacing its
// hand-rolled summercat.com/config key=value reader with
// gopkg.in/yaml.v2, the format the rest of the example pack reaches
// for the same concern.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is harrowd's full runtime configuration.
type Config struct {
	ListenAddress string        `yaml:"listen-address"`
	Hostname      string        `yaml:"hostname"`
	Version       string        `yaml:"version"`
	CreatedDate   string        `yaml:"created-date"`
	MaxNickLength int           `yaml:"max-nick-length"`
	PingInterval  time.Duration `yaml:"ping-interval"`
	DeadTime      time.Duration `yaml:"dead-time"`
}

// defaults mirrors the teacher's practice of shipping a runnable
// configuration rather than requiring every key to be spelled out.
func defaults() Config {
	return Config{
		ListenAddress: "0.0.0.0:6667",
		Hostname:      "irc.example.org",
		Version:       "harrowd-0.1",
		CreatedDate:   "unknown",
		MaxNickLength: 9,
		PingInterval:  2 * time.Minute,
		DeadTime:      4 * time.Minute,
	}
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// validate checks the loaded values, in the same spirit as the
// teacher's checkAndParseConfig — just against a typed struct instead
// of a raw string map. Keys absent from the file keep their defaults;
// listen-address and hostname must not be blank, max-nick-length and
// ping-interval must be positive, and dead-time must exceed
// ping-interval. version and created-date are not checked.
func (c *Config) validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen-address must not be blank")
	}
	if c.Hostname == "" {
		return errors.New("hostname must not be blank")
	}
	if c.MaxNickLength <= 0 {
		return errors.Errorf("max-nick-length must be positive, got %d", c.MaxNickLength)
	}
	if c.PingInterval <= 0 {
		return errors.New("ping-interval must be positive")
	}
	if c.DeadTime <= c.PingInterval {
		return errors.New("dead-time must be greater than ping-interval")
	}
	return nil
}
