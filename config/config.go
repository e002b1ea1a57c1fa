// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

/*
Package config loads the logtally configuration from a JSON file, with
environment variables prefixed “LOGTALLY_” overriding individual settings,
such as “LOGTALLY_LISTEN_ADDRESS=127.0.0.1:9000”. List settings can be
overridden from the environment using comma-separated values.

Durations are specified as strings in Go duration syntax, such as “30s” or
“1m30s”.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the name of the configuration file used when none has
// been explicitly specified.
const DefaultConfigFile = "config.json"

// EnvPrefix is the prefix of environment variables overriding settings.
const EnvPrefix = "LOGTALLY"

// Config holds the logtally configuration.
type Config struct {
	DockerImages    []string      `mapstructure:"docker_images"`    // names of images whose containers to watch.
	DockerSocket    string        `mapstructure:"docker_socket"`    // Docker API endpoint.
	ListenAddress   string        `mapstructure:"listen_address"`   // address of the metrics endpoint.
	Extractor       string        `mapstructure:"extractor"`        // name of the log line extractor plugin.
	PollInterval    time.Duration `mapstructure:"poll_interval"`    // between container discoveries.
	RetryInterval   time.Duration `mapstructure:"retry_interval"`   // after a failed discovery.
	Backoff         time.Duration `mapstructure:"backoff"`          // before reconnecting a log stream.
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`   // between evictions of stale metrics.
	TTL             time.Duration `mapstructure:"ttl"`              // idle time after which metrics get evicted.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // max. time to wait for draining.
	MaxOpening      int           `mapstructure:"max_opening"`      // max. concurrent log stream opens; 0 is unlimited.
}

// Defaults of the individual settings.
var defaults = map[string]any{
	"docker_images":    []string{"atdr.meo.ws/archiveteam/urls-grab"},
	"docker_socket":    "/var/run/docker.sock",
	"listen_address":   "0.0.0.0:8000",
	"extractor":        "urlsgrab",
	"poll_interval":    "60s",
	"retry_interval":   "10s",
	"backoff":          "1s",
	"sweep_interval":   "10s",
	"ttl":              "60s",
	"shutdown_timeout": "10s",
	"max_opening":      0,
}

// Load reads the configuration from the specified JSON file, filling in
// defaults for missing settings and applying overrides from the environment.
// The configuration file must exist. The configuration returned has been
// validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode configuration file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration file %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the configuration for missing and invalid settings,
// returning all issues found.
func (c *Config) Validate() error {
	var errs []error
	if len(c.DockerImages) == 0 {
		errs = append(errs, errors.New("docker_images must not be empty"))
	}
	for _, image := range c.DockerImages {
		if image == "" {
			errs = append(errs, errors.New("docker_images must not contain empty image names"))
			break
		}
	}
	if c.DockerSocket == "" {
		errs = append(errs, errors.New("docker_socket must not be empty"))
	}
	if c.ListenAddress == "" {
		errs = append(errs, errors.New("listen_address must not be empty"))
	}
	for _, d := range []struct {
		name string
		d    time.Duration
	}{
		{"poll_interval", c.PollInterval},
		{"retry_interval", c.RetryInterval},
		{"backoff", c.Backoff},
		{"sweep_interval", c.SweepInterval},
		{"ttl", c.TTL},
		{"shutdown_timeout", c.ShutdownTimeout},
	} {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.d))
		}
	}
	if c.MaxOpening < 0 {
		errs = append(errs, fmt.Errorf("max_opening must not be negative, got %d", c.MaxOpening))
	}
	return errors.Join(errs...)
}
