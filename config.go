package offsync

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	syncErrors "github.com/offlinekit/offsync/errors"
)

// Config is the file-backed engine configuration. Durations are written as
// Go duration strings ("30s", "5m"). Zero values fall back to the engine
// defaults, so a partial file is fine.
type Config struct {
	AutoSync     *bool  `yaml:"auto_sync,omitempty" json:"auto_sync,omitempty"`
	SyncInterval string `yaml:"sync_interval,omitempty" json:"sync_interval,omitempty"`
	Debounce     string `yaml:"debounce,omitempty" json:"debounce,omitempty"`
	WifiOnly     bool   `yaml:"wifi_only,omitempty" json:"wifi_only,omitempty"`

	// Retry selects and parameterizes the retry policy.
	Retry RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// RetryConfig configures the retry policy. Backoff "fixed" (the default)
// uses Delay for every retry; "exponential" grows from Delay up to
// MaxDelay by Multiplier.
type RetryConfig struct {
	Backoff    string  `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	MaxRetries int     `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Delay      string  `yaml:"delay,omitempty" json:"delay,omitempty"`
	MaxDelay   string  `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
}

// LoadConfig reads a YAML engine configuration from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, syncErrors.NewWithComponent(syncErrors.OpConfigure, "config", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
			fmt.Errorf("parsing %s: %w", path, err))
	}
	return &cfg, nil
}

// Options converts the configuration into engine options.
func (c *Config) Options() ([]EngineOption, error) {
	var opts []EngineOption

	if c.AutoSync != nil {
		opts = append(opts, WithAutoSync(*c.AutoSync))
	}
	if c.SyncInterval != "" {
		d, err := time.ParseDuration(c.SyncInterval)
		if err != nil {
			return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
				fmt.Errorf("invalid sync_interval %q: %w", c.SyncInterval, err))
		}
		opts = append(opts, WithSyncInterval(d))
	}
	if c.Debounce != "" {
		d, err := time.ParseDuration(c.Debounce)
		if err != nil {
			return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
				fmt.Errorf("invalid debounce %q: %w", c.Debounce, err))
		}
		opts = append(opts, WithDebounce(d))
	}
	if c.WifiOnly {
		opts = append(opts, WithWifiOnly(true))
	}

	policy, err := c.Retry.policy()
	if err != nil {
		return nil, err
	}
	if policy != nil {
		opts = append(opts, WithRetryPolicy(policy))
	}

	return opts, nil
}

func (r RetryConfig) policy() (RetryPolicy, error) {
	if r == (RetryConfig{}) {
		return nil, nil
	}

	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultRetryPolicy().MaxRetries
	}

	delay := DefaultRetryPolicy().Delay
	if r.Delay != "" {
		d, err := time.ParseDuration(r.Delay)
		if err != nil {
			return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
				fmt.Errorf("invalid retry delay %q: %w", r.Delay, err))
		}
		delay = d
	}

	switch r.Backoff {
	case "", "fixed":
		return &FixedDelayPolicy{MaxRetries: maxRetries, Delay: delay}, nil
	case "exponential":
		maxDelay := 10 * delay
		if r.MaxDelay != "" {
			d, err := time.ParseDuration(r.MaxDelay)
			if err != nil {
				return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
					fmt.Errorf("invalid retry max_delay %q: %w", r.MaxDelay, err))
			}
			maxDelay = d
		}
		multiplier := r.Multiplier
		if multiplier <= 1 {
			multiplier = 2.0
		}
		return &ExponentialBackoffPolicy{
			MaxRetries:   maxRetries,
			InitialDelay: delay,
			MaxDelay:     maxDelay,
			Multiplier:   multiplier,
		}, nil
	default:
		return nil, syncErrors.NewValidationError(syncErrors.OpConfigure,
			fmt.Errorf("unknown retry backoff %q", r.Backoff))
	}
}
