// Package config holds certcheck runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SlackConfig describes the webhook alerts are delivered to.
type SlackConfig struct {
	WebhookURL string `yaml:"webhookUrl"` // required
	Channel    string `yaml:"channel"`    // required
	Username   string `yaml:"username"`   // default "certificate-check"
	IconEmoji  string `yaml:"iconEmoji"`  // default ":certificate:"
}

// BoshConfig describes the director whose deployment manifests are
// scanned.
type BoshConfig struct {
	Environment string `yaml:"environment"` // director hostname
	Port        int    `yaml:"port"`        // default 25555
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	CACert      string `yaml:"caCert"` // path to PEM roots
}

// Config holds certcheck runtime configuration.
type Config struct {
	Slack       SlackConfig `yaml:"slack"`
	Bosh        BoshConfig  `yaml:"bosh"`
	DaysWarn    int         `yaml:"daysWarn"`  // default 30
	DaysError   int         `yaml:"daysError"` // default 7
	NoBoshCheck bool        `yaml:"noBoshCheck"`
	NoELBCheck  bool        `yaml:"noElbCheck"`
	Pushgateway string      `yaml:"pushgateway"` // empty = no metrics push
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Slack: SlackConfig{
			Username:  "certificate-check",
			IconEmoji: ":certificate:",
		},
		Bosh:      BoshConfig{Port: 25555},
		DaysWarn:  30,
		DaysError: 7,
	}
}

// Load reads a YAML config file and merges with defaults. Environment
// and flag overrides are layered on by the caller, so validation
// happens there, not here.
func Load(path string) (*Config, error) {
	c := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() error {
	stringVars := []struct {
		dst *string
		key string
	}{
		{&c.Slack.WebhookURL, "SLACK_WEBHOOK"},
		{&c.Slack.Channel, "SLACK_CHANNEL"},
		{&c.Slack.Username, "SLACK_USERNAME"},
		{&c.Slack.IconEmoji, "SLACK_ICON_EMOJI"},
		{&c.Bosh.Environment, "BOSH_ENVIRONMENT"},
		{&c.Bosh.Username, "BOSH_USERNAME"},
		{&c.Bosh.Password, "BOSH_PASSWORD"},
		{&c.Bosh.CACert, "BOSH_CA_CERT"},
		{&c.Pushgateway, "PUSHGATEWAY_URL"},
	}
	for _, v := range stringVars {
		if s := os.Getenv(v.key); s != "" {
			*v.dst = s
		}
	}

	intVars := []struct {
		dst *int
		key string
	}{
		{&c.DaysWarn, "DAYS_WARN"},
		{&c.DaysError, "DAYS_ERROR"},
	}
	for _, v := range intVars {
		s := os.Getenv(v.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", v.key, err)
		}
		*v.dst = n
	}

	// Any non-empty value enables the skip.
	if os.Getenv("NO_BOSH_CHECK") != "" {
		c.NoBoshCheck = true
	}
	if os.Getenv("NO_ELB_CHECK") != "" {
		c.NoELBCheck = true
	}

	return nil
}

// Validate checks that required settings are present. The expiry
// thresholds are not cross-checked: when daysError exceeds daysWarn the
// danger bucket simply wins.
func (c *Config) Validate() error {
	if c.Slack.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is required")
	}
	if c.Slack.Channel == "" {
		return fmt.Errorf("slack channel is required")
	}
	if !c.NoBoshCheck && c.Bosh.Environment == "" {
		return fmt.Errorf("bosh environment is required unless the bosh check is disabled")
	}
	if !c.NoBoshCheck && c.Bosh.Port <= 0 {
		return fmt.Errorf("bosh director port must be positive")
	}
	return nil
}
