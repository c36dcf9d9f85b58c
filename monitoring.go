package encattr

import "github.com/hengadev/encattr/internal/monitoring"

type (
	ObservabilityHook        = monitoring.ObservabilityHook
	NoOpObservabilityHook    = monitoring.NoOpObservabilityHook
	MetricsCollector         = monitoring.MetricsCollector
	InMemoryMetricsCollector = monitoring.InMemoryMetricsCollector
	LoggerConfig             = monitoring.LoggerConfig
)

var (
	NewLogger                     = monitoring.NewLogger
	NewDiscardLogger              = monitoring.NewDiscardLogger
	NewLoggingObservabilityHook   = monitoring.NewLoggingObservabilityHook
	NewMetricsObservabilityHook   = monitoring.NewMetricsObservabilityHook
	NewCompositeObservabilityHook = monitoring.NewCompositeObservabilityHook
	NewInMemoryMetricsCollector   = monitoring.NewInMemoryMetricsCollector
)
