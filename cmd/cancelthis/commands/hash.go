// Package commands implements CLI command handlers for cancelthis.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"gopkg.in/yaml.v3"

	"github.com/daemontus/cancel-this/internal/config"
	"github.com/daemontus/cancel-this/internal/observability"
	"github.com/daemontus/cancel-this/pkg/digest"
	"github.com/daemontus/cancel-this/pkg/executor"
	"github.com/daemontus/cancel-this/pkg/liveness"
	"github.com/daemontus/cancel-this/pkg/trigger"
	"github.com/daemontus/cancel-this/pkg/version"
)

// Output format names.
const (
	outputTable = "table"
	outputYAML  = "yaml"
)

// metricsReadTimeout bounds header reads on the scrape endpoint.
const metricsReadTimeout = 5 * time.Second

// ErrUnknownOutput indicates an unrecognized --output value.
var ErrUnknownOutput = errors.New("unknown output format")

// HashCommand holds configuration and flags for the hash command.
type HashCommand struct {
	configPath   string
	elements     int
	chunkSize    int
	engineName   string
	elementDelay time.Duration
	timeout      time.Duration
	memoryLimit  string
	noSignal     bool
	output       string
	metricsAddr  string
	verbose      bool
}

// runReport is one row of the demo result, for both table and YAML output.
type runReport struct {
	Mode     string `yaml:"mode"`
	Engine   string `yaml:"engine"`
	Status   string `yaml:"status"`
	Digest   string `yaml:"digest,omitempty"`
	Cause    string `yaml:"cause,omitempty"`
	Chunks   int    `yaml:"chunks"`
	Duration string `yaml:"duration"`
}

// NewHashCommand creates the hash command.
func NewHashCommand() *cobra.Command {
	hc := &HashCommand{}

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Digest a generated buffer in unchecked and checked mode",
		Long: `Hash generates a buffer of sequential uint64 elements and digests it
twice: first in one unbroken pass (the process ignores interrupts until it
finishes), then in checkpointed chunks that poll for stop requests between
chunks. Press Ctrl+C during the checked run to cancel it cooperatively.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return hc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&hc.configPath, "config", "", "config file path (default: .cancelthis.yaml in CWD or $HOME)")
	cmd.Flags().IntVarP(&hc.elements, "elements", "n", config.DefaultHashElements, "number of uint64 elements in the buffer")
	cmd.Flags().IntVarP(&hc.chunkSize, "chunk-size", "c", config.DefaultHashChunkSize, "elements digested between checkpoints")
	cmd.Flags().StringVarP(&hc.engineName, "engine", "e", config.DefaultHashEngine, "digest engine (xxh64, fnv64a)")
	cmd.Flags().DurationVar(&hc.elementDelay, "element-delay", 0, "artificial per-element delay, e.g. 1ms")
	cmd.Flags().DurationVar(&hc.timeout, "timeout", 0, "cancel the checked run after this duration (0 disables)")
	cmd.Flags().StringVar(&hc.memoryLimit, "memory-limit", "", "cancel when resident memory exceeds this size, e.g. 512MiB")
	cmd.Flags().BoolVar(&hc.noSignal, "no-signal", false, "do not attach the interrupt signal trigger")
	cmd.Flags().StringVarP(&hc.output, "output", "o", outputTable, "output format (table, yaml)")
	cmd.Flags().StringVar(&hc.metricsAddr, "metrics-addr", "", "serve the Prometheus /metrics endpoint on this address")
	cmd.Flags().BoolVarP(&hc.verbose, "verbose", "v", false, "verbose logging")

	return cmd
}

func (hc *HashCommand) run(cmd *cobra.Command) error {
	cfg, err := hc.loadConfig(cmd)
	if err != nil {
		return err
	}

	if hc.output != outputTable && hc.output != outputYAML {
		return fmt.Errorf("%w: %q", ErrUnknownOutput, hc.output)
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "cancelthis",
		ServiceVersion: version.Version,
		Environment:    cfg.Observability.Environment,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		LogLevel:       logLevel(cfg, hc.verbose),
		LogJSON:        cfg.Observability.LogJSON,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	meter := providers.Meter

	if cfg.Observability.MetricsAddr != "" {
		promMeter, serveErr := hc.serveMetrics(cfg.Observability.MetricsAddr, providers.Logger)
		if serveErr != nil {
			return serveErr
		}

		meter = promMeter
	}

	engine, err := digest.ByName(cfg.Hash.Engine)
	if err != nil {
		return fmt.Errorf("select engine: %w", err)
	}

	engine = digest.Throttle(engine, cfg.Hash.ElementDelay)

	triggers, closeTriggers, err := hc.buildTriggers(cfg)
	if err != nil {
		return err
	}

	defer closeTriggers()

	monitor := liveness.NewMonitor(liveness.WithLogger(providers.Logger))

	exec, err := executor.New(monitor,
		executor.WithEngine(engine),
		executor.WithChunkSize(cfg.Hash.ChunkSize),
		executor.WithTriggers(triggers...),
		executor.WithTracer(providers.Tracer),
		executor.WithMeter(meter),
		executor.WithExecutorLogger(providers.Logger),
	)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	buf := make([]uint64, cfg.Hash.Elements)
	for i := range buf {
		buf[i] = uint64(i)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created data buffer with %s elements.\n",
		humanize.Comma(int64(len(buf))))

	stopWatch := monitor.Watch(cfg.Liveness.Threshold, func(alive bool) {
		if alive {
			color.Green(" >> computation became responsive")
		} else {
			color.Red(" >> computation became unresponsive")
		}
	})
	defer stopWatch()

	reports := make([]runReport, 0, 2)
	reports = append(reports, hc.runUnchecked(cmd.Context(), exec, cfg, buf))
	reports = append(reports, hc.runChecked(cmd.Context(), exec, cfg, buf))

	return hc.render(cmd, reports)
}

// runUnchecked digests the buffer in a single pass. During this run the
// process is deliberately unresponsive; the liveness watcher will say so.
func (hc *HashCommand) runUnchecked(ctx context.Context, exec *executor.Executor, cfg *config.Config, buf []uint64) runReport {
	start := time.Now()
	sum := exec.HashUnchecked(ctx, buf)

	return runReport{
		Mode:     "unchecked",
		Engine:   cfg.Hash.Engine,
		Status:   observability.StatusCompleted,
		Digest:   fmt.Sprintf("%016x", sum),
		Chunks:   1,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
}

func (hc *HashCommand) runChecked(ctx context.Context, exec *executor.Executor, cfg *config.Config, buf []uint64) runReport {
	report := runReport{
		Mode:   "checked",
		Engine: cfg.Hash.Engine,
	}

	start := time.Now()
	sum, err := exec.HashChecked(ctx, buf)
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	var cancelled *executor.CancelledError

	switch {
	case errors.As(err, &cancelled):
		report.Status = observability.StatusCancelled
		report.Cause = cancelled.Cause
		report.Chunks = cancelled.ChunksProcessed
	case err != nil:
		report.Status = observability.StatusError
		report.Cause = err.Error()
	default:
		report.Status = observability.StatusCompleted
		report.Digest = fmt.Sprintf("%016x", sum)
		report.Chunks = (len(buf) + cfg.Hash.ChunkSize - 1) / cfg.Hash.ChunkSize
	}

	return report
}

// loadConfig merges the config file with explicitly set CLI flags; flags win.
func (hc *HashCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(hc.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("elements") {
		cfg.Hash.Elements = hc.elements
	}

	if flags.Changed("chunk-size") {
		cfg.Hash.ChunkSize = hc.chunkSize
	}

	if flags.Changed("engine") {
		cfg.Hash.Engine = hc.engineName
	}

	if flags.Changed("element-delay") {
		cfg.Hash.ElementDelay = hc.elementDelay
	}

	if flags.Changed("timeout") {
		cfg.Stop.Timeout = hc.timeout
	}

	if flags.Changed("memory-limit") {
		cfg.Stop.MemoryLimit = hc.memoryLimit
	}

	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = hc.metricsAddr
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// buildTriggers assembles the external stop sources for the checked run and
// returns a cleanup function for the ones that own resources.
func (hc *HashCommand) buildTriggers(cfg *config.Config) ([]trigger.Trigger, func(), error) {
	var (
		triggers []trigger.Trigger
		closers  []func()
	)

	if !hc.noSignal {
		sig := trigger.NotifySignal()
		triggers = append(triggers, sig)
		closers = append(closers, sig.Close)
	}

	if cfg.Stop.Timeout > 0 {
		timer := trigger.StartTimer(cfg.Stop.Timeout)
		triggers = append(triggers, timer)
		closers = append(closers, timer.Close)
	}

	if limit := cfg.MemoryLimitBytes(); limit > 0 {
		memLimit, err := trigger.NewMemoryLimit(limit)
		if err != nil {
			for _, closeFn := range closers {
				closeFn()
			}

			return nil, nil, fmt.Errorf("create memory trigger: %w", err)
		}

		triggers = append(triggers, memLimit)
	}

	closeAll := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}

	return triggers, closeAll, nil
}

// serveMetrics starts the Prometheus scrape endpoint in the background and
// returns the meter whose instruments it exposes.
func (hc *HashCommand) serveMetrics(addr string, logger *slog.Logger) (metric.Meter, error) {
	handler, meter, err := observability.PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create metrics endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics endpoint failed", "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", addr)

	return meter, nil
}

func (hc *HashCommand) render(cmd *cobra.Command, reports []runReport) error {
	if hc.output == outputYAML {
		encoded, err := yaml.Marshal(reports)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), string(encoded))

		return nil
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"Mode", "Engine", "Status", "Digest", "Chunks", "Duration"})

	for _, report := range reports {
		status := report.Status
		if report.Cause != "" {
			status = fmt.Sprintf("%s (%s)", report.Status, report.Cause)
		}

		if report.Status == observability.StatusCompleted {
			status = color.GreenString(status)
		} else {
			status = color.RedString(status)
		}

		tbl.AppendRow(table.Row{
			report.Mode, report.Engine, status, report.Digest, report.Chunks, report.Duration,
		})
	}

	tbl.Render()

	return nil
}

func logLevel(cfg *config.Config, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(cfg.Observability.LogLevel))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}
