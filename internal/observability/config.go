// Package observability wires structured logging, OpenTelemetry tracing and
// metrics, and the Prometheus scrape endpoint for cancel-this binaries.
package observability

import "log/slog"

// defaultShutdownTimeoutSec bounds telemetry flush time at process exit.
const defaultShutdownTimeoutSec = 5

// Config controls observability initialization.
type Config struct {
	// ServiceName identifies the binary in telemetry resources and logs.
	ServiceName string

	// ServiceVersion is the binary version, when known.
	ServiceVersion string

	// Environment is the deployment environment label (e.g. "dev").
	Environment string

	// OTLPEndpoint is the gRPC endpoint for trace and metric export.
	// Empty disables export; no-op providers are used instead.
	OTLPEndpoint string

	// LogLevel is the minimum level emitted by the logger.
	LogLevel slog.Level

	// LogJSON selects the JSON handler instead of the text handler.
	LogJSON bool

	// ShutdownTimeoutSec bounds Shutdown; zero uses the default.
	ShutdownTimeoutSec int
}
