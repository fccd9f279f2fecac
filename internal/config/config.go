// Package config loads configuration for the cancelthis CLI from file,
// environment, and defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/daemontus/cancel-this/pkg/digest"
	"github.com/daemontus/cancel-this/pkg/units"
)

// Config is the top-level configuration struct.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Hash          HashConfig          `mapstructure:"hash"`
	Stop          StopConfig          `mapstructure:"stop"`
	Liveness      LivenessConfig      `mapstructure:"liveness"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HashConfig holds the digest workload knobs.
type HashConfig struct {
	// Elements is the number of uint64 elements in the generated buffer.
	Elements int `mapstructure:"elements"`

	// ChunkSize is the number of elements digested between checkpoints.
	ChunkSize int `mapstructure:"chunk_size"`

	// Engine selects the digest algorithm ("xxh64" or "fnv64a").
	Engine string `mapstructure:"engine"`

	// ElementDelay slows each element down, making responsiveness
	// differences observable on small buffers. Zero disables throttling.
	ElementDelay time.Duration `mapstructure:"element_delay"`
}

// StopConfig holds the external stop sources attached to checked runs.
type StopConfig struct {
	// Timeout cancels the run after the given duration. Zero disables
	// the timer trigger.
	Timeout time.Duration `mapstructure:"timeout"`

	// MemoryLimit cancels the run when resident memory exceeds this
	// size (humanized, e.g. "512MiB"). Empty disables the trigger.
	MemoryLimit string `mapstructure:"memory_limit"`
}

// LivenessConfig holds responsiveness watcher settings.
type LivenessConfig struct {
	// Threshold is the maximum checkpoint gap before the computation is
	// reported unresponsive.
	Threshold time.Duration `mapstructure:"threshold"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	LogLevel     string `mapstructure:"log_level"`
	LogJSON      bool   `mapstructure:"log_json"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Defaults.
const (
	DefaultHashElements  = 4096
	DefaultHashChunkSize = 256
	DefaultHashEngine    = "xxh64"

	DefaultLivenessThreshold = time.Second

	DefaultLogLevel = "info"
)

// minMemoryLimit rejects limits below any realistic process baseline.
// A limit under the resident memory of an idle Go process would cancel
// every run at the first checkpoint.
const minMemoryLimit = 16 * units.MiB

// Validation errors.
var (
	// ErrNonPositiveElements indicates a zero or negative buffer size.
	ErrNonPositiveElements = errors.New("hash.elements must be positive")

	// ErrNonPositiveChunkSize indicates a zero or negative chunk size.
	ErrNonPositiveChunkSize = errors.New("hash.chunk_size must be positive")

	// ErrNonPositiveThreshold indicates a zero or negative liveness threshold.
	ErrNonPositiveThreshold = errors.New("liveness.threshold must be positive")

	// ErrMemoryLimitTooSmall indicates a memory limit below the process baseline.
	ErrMemoryLimitTooSmall = errors.New("stop.memory_limit must be at least 16MiB")
)

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Hash.Elements <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveElements, c.Hash.Elements)
	}

	if c.Hash.ChunkSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrNonPositiveChunkSize, c.Hash.ChunkSize)
	}

	_, err := digest.ByName(c.Hash.Engine)
	if err != nil {
		return fmt.Errorf("hash.engine: %w", err)
	}

	if c.Liveness.Threshold <= 0 {
		return fmt.Errorf("%w: got %s", ErrNonPositiveThreshold, c.Liveness.Threshold)
	}

	if c.Stop.MemoryLimit != "" {
		limit, err := humanize.ParseBytes(c.Stop.MemoryLimit)
		if err != nil {
			return fmt.Errorf("stop.memory_limit: %w", err)
		}

		if limit < minMemoryLimit {
			return fmt.Errorf("%w: got %s", ErrMemoryLimitTooSmall, c.Stop.MemoryLimit)
		}
	}

	return nil
}

// MemoryLimitBytes parses the configured memory limit. Zero means the
// limit is disabled. Call Validate first; an invalid value returns zero.
func (c *Config) MemoryLimitBytes() uint64 {
	if c.Stop.MemoryLimit == "" {
		return 0
	}

	limit, err := humanize.ParseBytes(c.Stop.MemoryLimit)
	if err != nil {
		return 0
	}

	return limit
}
