// Package hubconfig loads the Floor Manager's configuration record (spec
// 6.1) the way the teacher's config package loads cellorg's: a YAML file
// unmarshaled via gopkg.in/yaml.v3, with zero-value defaults applied
// after load.
package hubconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the construction-time configuration record spec 6.1
// describes.
type Config struct {
	HubSpeakerURI string `yaml:"hub_speaker_uri"`

	SupportedSchemaVersions []string `yaml:"supported_schema_versions"`

	MaxQueueDepth int `yaml:"max_queue_depth"`

	DefaultGrantTimeoutSeconds int `yaml:"default_grant_timeout_seconds"`

	TickIntervalSeconds int `yaml:"tick_interval_seconds"`

	// EmitWrappedEnvelopes controls whether outbound envelopes are
	// emitted under the historical "openFloor" wrapper key (spec 9).
	EmitWrappedEnvelopes bool `yaml:"emit_wrapped_envelopes"`

	// PendingDeliveryBuffer bounds the optional per-recipient
	// buffer-until-registered policy (spec 9's open question on
	// UnknownRecipient). Zero disables buffering (drop-and-report,
	// the spec's default minimal behavior).
	PendingDeliveryBuffer int `yaml:"pending_delivery_buffer"`

	Debug bool `yaml:"debug"`
}

const (
	defaultMaxQueueDepth  = 128
	defaultTickInterval   = 5 * time.Second
	defaultSchemaVersion  = "1.1.0"
)

// Load reads and parses filename, applying defaults for anything left
// unset (mirrors the teacher's config.Load: read file, unmarshal,
// backfill zero values).
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("hubconfig: failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hubconfig: failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HubSpeakerURI == "" {
		c.HubSpeakerURI = "urn:floorhub:hub"
	}
	if len(c.SupportedSchemaVersions) == 0 {
		c.SupportedSchemaVersions = []string{defaultSchemaVersion}
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.TickIntervalSeconds <= 0 {
		c.TickIntervalSeconds = int(defaultTickInterval / time.Second)
	}
}

// SupportedVersionSet returns SupportedSchemaVersions as a lookup set,
// the shape the envelope codec's Decode expects.
func (c *Config) SupportedVersionSet() map[string]bool {
	set := make(map[string]bool, len(c.SupportedSchemaVersions))
	for _, v := range c.SupportedSchemaVersions {
		set[v] = true
	}
	return set
}

// GrantTimeout returns the configured default grant timeout as a
// time.Duration, or zero if unset (spec 6.1: "Unset -> no timeout").
func (c *Config) GrantTimeout() time.Duration {
	if c.DefaultGrantTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DefaultGrantTimeoutSeconds) * time.Second
}

// TickInterval returns the configured tick cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// Default returns a Config with every field at its spec-mandated
// default, useful for embedders that construct the hub programmatically
// rather than from a YAML file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
