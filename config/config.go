// Package config loads the hglue configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/mysensors"
	"github.com/nlowe/hglue/supervisor"
)

const (
	DefaultClientID         = "hglue"
	DefaultKeepAlive        = 30 * time.Second
	DefaultStateTopicPrefix = "hglue"
)

// Config holds all hglue configuration.
type Config struct {
	LogLevel         string           `yaml:"log_level"`
	MQTT             MQTTConfig       `yaml:"mqtt"`
	Supervisor       SupervisorConfig `yaml:"supervisor"`
	StateTopicPrefix string           `yaml:"state_topic_prefix"`
	Entries          []EntryConfig    `yaml:"entries"`
	Zeroconf         ZeroconfConfig   `yaml:"zeroconf"`
	MySensors        MySensorsConfig  `yaml:"mysensors"`
}

// MQTTConfig configures the broker connection. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	ClientID  string        `yaml:"client_id"`
	KeepAlive time.Duration `yaml:"keepalive"`
}

// Configured reports whether a broker was set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// SupervisorConfig configures how supervisor presence and OS info are determined.
type SupervisorConfig struct {
	// Present overrides detection from the environment when set.
	Present     *bool  `yaml:"present"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// IsPresent returns Present when set, supervisor.Detect otherwise.
func (c SupervisorConfig) IsPresent() bool {
	if c.Present != nil {
		return *c.Present
	}

	return supervisor.Detect()
}

// EntryConfig is a config entry imported at startup.
type EntryConfig struct {
	Domain string         `yaml:"domain"`
	Title  string         `yaml:"title"`
	Data   map[string]any `yaml:"data"`
}

// ZeroconfConfig maps browsed mDNS service types to the domain whose discovery flow handles them.
type ZeroconfConfig struct {
	Interface   string            `yaml:"interface"`
	AutoConfirm bool              `yaml:"auto_confirm"`
	Services    map[string]string `yaml:"services"`
}

// MySensorsConfig lists the MySensors gateways entries are imported for.
type MySensorsConfig struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// GatewayConfig is one MySensors gateway.
type GatewayConfig struct {
	Device  string `yaml:"device"`
	Type    string `yaml:"type"`
	Version string `yaml:"version"`
}

// Load reads configuration from a YAML file. Environment variables in the file are expanded and defaults are applied,
// but the result is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse reads configuration from YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a configuration with every default applied and MQTT disabled.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in unset values.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}

	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = DefaultKeepAlive
	}

	if c.Supervisor.TopicPrefix == "" {
		c.Supervisor.TopicPrefix = supervisor.DefaultTopicPrefix
	}

	if c.StateTopicPrefix == "" {
		c.StateTopicPrefix = DefaultStateTopicPrefix
	}

	for i := range c.Entries {
		if c.Entries[i].Title == "" {
			c.Entries[i].Title = c.Entries[i].Domain
		}
	}

	for i := range c.MySensors.Gateways {
		if c.MySensors.Gateways[i].Type == "" {
			c.MySensors.Gateways[i].Type = string(mysensors.GatewayTypeSerial)
		}
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if c.MQTT.Configured() {
		if u, err := url.Parse(c.MQTT.Broker); err != nil {
			errs = append(errs, fmt.Errorf("mqtt.broker: %w", err))
		} else if u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("mqtt.broker: %q needs a scheme and host", c.MQTT.Broker))
		}
	}

	if c.MQTT.KeepAlive < time.Second || c.MQTT.KeepAlive > time.Duration(^uint16(0))*time.Second {
		errs = append(errs, fmt.Errorf("mqtt.keepalive: %s out of range", c.MQTT.KeepAlive))
	}

	for i, e := range c.Entries {
		if strings.TrimSpace(e.Domain) == "" {
			errs = append(errs, fmt.Errorf("entries[%d]: domain is required", i))
		}
	}

	for service, domain := range c.Zeroconf.Services {
		if !strings.HasPrefix(service, "_") {
			errs = append(errs, fmt.Errorf("zeroconf.services: %q is not a service type", service))
		}

		if domain == "" {
			errs = append(errs, fmt.Errorf("zeroconf.services[%s]: domain is required", service))
		}
	}

	for i, gw := range c.MySensors.Gateways {
		if gw.Device == "" {
			errs = append(errs, fmt.Errorf("mysensors.gateways[%d]: device is required", i))
		}

		if _, err := mysensors.ParseGatewayType(gw.Type); err != nil {
			errs = append(errs, fmt.Errorf("mysensors.gateways[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
