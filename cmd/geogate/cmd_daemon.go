package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/geogate/geogate/telemetry"
	"github.com/geogate/geogate/types"
)

var (
	daemonInbox       string
	daemonOutbox      string
	daemonInterval    time.Duration
	daemonMetricsAddr string
	daemonOTELEndpt   string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the batch watcher and metrics server",
	Long: `Watch an inbox directory for feature batch files and classify each
one as it lands. Processed files move to <name>.done and results land in
the outbox directory. Metrics are served on /metrics for Prometheus
scraping and pushed over OTLP when an endpoint is configured.`,
	Example: `  geogate daemon --inbox inbox/ --outbox outbox/
  geogate daemon --inbox inbox/ --metrics-addr :9464 --interval 10s`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonInbox, "inbox", "inbox", "Directory watched for feature batch files")
	daemonCmd.Flags().StringVar(&daemonOutbox, "outbox", "outbox", "Directory receiving result files")
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 30*time.Second, "Inbox poll interval")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":9464", "Metrics server address")
	daemonCmd.Flags().StringVar(&daemonOTELEndpt, "otel-endpoint", "", "OTLP gRPC endpoint (empty = env or localhost:4317)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "geogate",
		ServiceVersion: version,
		OTELEndpoint:   daemonOTELEndpt,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("telemetry init failed: %w", err)
	}
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := shutdown(shutCtx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := os.MkdirAll(daemonInbox, 0o750); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	if err := os.MkdirAll(daemonOutbox, 0o750); err != nil {
		return fmt.Errorf("failed to create outbox: %w", err)
	}

	var g run.Group

	// Shutdown on SIGINT/SIGTERM.
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// Metrics server scraping the dual-export registry.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              daemonMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Add(func() error {
		log.Info().Str("addr", daemonMetricsAddr).Msg("metrics server listening")
		return srv.ListenAndServe()
	}, func(error) {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	})

	// Inbox watcher.
	watchCtx, watchCancel := context.WithCancel(ctx)
	g.Add(func() error {
		return watchInbox(watchCtx, a)
	}, func(error) {
		watchCancel()
	})

	log.Info().
		Str("inbox", daemonInbox).
		Str("outbox", daemonOutbox).
		Dur("interval", daemonInterval).
		Msg("daemon starting")

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// watchInbox polls the inbox for batch files and classifies each one.
func watchInbox(ctx context.Context, a *app) error {
	ticker := time.NewTicker(daemonInterval)
	defer ticker.Stop()

	sweepInbox(ctx, a)

	for {
		select {
		case <-ticker.C:
			sweepInbox(ctx, a)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sweepInbox(ctx context.Context, a *app) {
	entries, err := os.ReadDir(daemonInbox)
	if err != nil {
		log.Error().Err(err).Str("inbox", daemonInbox).Msg("inbox read failed")
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := processBatchFile(ctx, a, e.Name()); err != nil {
			log.Error().Err(err).Str("file", e.Name()).Msg("batch file failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func processBatchFile(ctx context.Context, a *app, name string) error {
	path := filepath.Join(daemonInbox, name)
	data, err := os.ReadFile(path) // #nosec G304 -- inbox is operator-controlled
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}

	var features []types.Feature
	if err := json.Unmarshal(data, &features); err != nil {
		// Unparseable input stays out of the pipeline but out of the
		// way too, so the next sweep doesn't retry it forever.
		_ = os.Rename(path, path+".rejected")
		return fmt.Errorf("failed to parse batch file: %w", err)
	}

	start := time.Now()
	batch := a.classifier.ClassifyBatch(ctx, features, a.cfg.Pipeline.BatchWorkers)

	results := make([]types.ConsensusResult, 0, len(batch))
	for _, b := range batch {
		results = append(results, b.Result)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	outPath := filepath.Join(daemonOutbox, strings.TrimSuffix(name, ".json")+".results.json")
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if err := os.Rename(path, path+".done"); err != nil {
		return fmt.Errorf("failed to mark batch done: %w", err)
	}

	log.Info().
		Str("file", name).
		Int("features", len(features)).
		Dur("elapsed", time.Since(start)).
		Msg("batch processed")
	return nil
}
