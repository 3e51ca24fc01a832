package offsync

import "time"

// MetricsCollector provides hooks for collecting engine metrics
type MetricsCollector interface {
	// RecordCycleDuration records how long a sync cycle took, by trigger
	RecordCycleDuration(trigger string, duration time.Duration)

	// RecordItems records per-cycle item outcomes
	RecordItems(succeeded, failed int)

	// RecordConflicts records the number of conflicts resolved
	RecordConflicts(resolved int)

	// RecordRetries records retry cycles scheduled after failures
	RecordRetries(scheduled int)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordCycleDuration(trigger string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordItems(succeeded, failed int)                          {}
func (n *NoOpMetricsCollector) RecordConflicts(resolved int)                               {}
func (n *NoOpMetricsCollector) RecordRetries(scheduled int)                                {}
