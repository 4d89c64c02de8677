package bootstrap

import (
	"log/slog"

	"github.com/target/opsconsole/config"
	"github.com/target/opsconsole/internal/observability/statsd"
)

// BuildMetrics returns a StatsD client; it is never nil. A dial failure is
// logged and yields a disabled client.
func BuildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig, component string) *statsd.Client {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    cfg.IsEnabled(),
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		Logger:     logger,
		GlobalTags: map[string]string{"component": component},
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return &statsd.Client{}
	}
	return client
}
