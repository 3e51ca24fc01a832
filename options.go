package offsync

import (
	"errors"
	"log/slog"
	"time"

	syncErrors "github.com/offlinekit/offsync/errors"
)

// Defaults applied by NewEngine.
const (
	DefaultSyncInterval  = 5 * time.Minute
	DefaultDebounceDelay = time.Second
)

type engineOptions struct {
	autoSync      bool
	syncInterval  time.Duration
	debounceDelay time.Duration
	wifiOnly      bool

	retryPolicy RetryPolicy
	resolver    ConflictResolver
	monitor     ConnectivityMonitor
	clock       Clock
	logger      *slog.Logger
	metrics     MetricsCollector
}

// EngineOption configures an Engine via NewEngine, in the functional
// options pattern.
type EngineOption func(*engineOptions) error

// WithAutoSync enables or disables the periodic timer trigger.
func WithAutoSync(enabled bool) EngineOption {
	return func(o *engineOptions) error {
		o.autoSync = enabled
		return nil
	}
}

// WithSyncInterval sets the periodic trigger interval.
func WithSyncInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) error {
		if d <= 0 {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("sync interval must be positive"))
		}
		o.syncInterval = d
		return nil
	}
}

// WithDebounce sets the short delay after an enqueue before a cycle is
// triggered, so bursts of enqueues collapse into one cycle.
func WithDebounce(d time.Duration) EngineOption {
	return func(o *engineOptions) error {
		if d <= 0 {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("debounce delay must be positive"))
		}
		o.debounceDelay = d
		return nil
	}
}

// WithWifiOnly gates automatic syncing to unmetered connectivity. Metered
// networks then count as offline for triggering purposes.
func WithWifiOnly(enabled bool) EngineOption {
	return func(o *engineOptions) error {
		o.wifiOnly = enabled
		return nil
	}
}

// WithRetryPolicy substitutes the retry policy.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(o *engineOptions) error {
		if p == nil {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("retry policy must not be nil"))
		}
		o.retryPolicy = p
		return nil
	}
}

// WithResolver substitutes the conflict resolver. The default dispatches
// on each item's declared strategy.
func WithResolver(r ConflictResolver) EngineOption {
	return func(o *engineOptions) error {
		if r == nil {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("resolver must not be nil"))
		}
		o.resolver = r
		return nil
	}
}

// WithConnectivity injects the connectivity signal source. Without one the
// engine assumes it is always online.
func WithConnectivity(m ConnectivityMonitor) EngineOption {
	return func(o *engineOptions) error {
		o.monitor = m
		return nil
	}
}

// WithClock injects a clock, for deterministic tests.
func WithClock(c Clock) EngineOption {
	return func(o *engineOptions) error {
		if c == nil {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("clock must not be nil"))
		}
		o.clock = c
		return nil
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) error {
		if logger == nil {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("logger must not be nil"))
		}
		o.logger = logger
		return nil
	}
}

// WithMetricsCollector sets the metrics sink.
func WithMetricsCollector(mc MetricsCollector) EngineOption {
	return func(o *engineOptions) error {
		if mc == nil {
			return syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("metrics collector must not be nil"))
		}
		o.metrics = mc
		return nil
	}
}
