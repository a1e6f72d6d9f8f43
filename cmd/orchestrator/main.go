// Command orchestrator runs the edge workload orchestrator: it accepts
// DAG-structured workloads from clients, admits and schedules them
// across a fixed backend accelerator cluster, and optionally drives a
// per-backend DVFS control loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgeorch/orchestrator/internal/config"
	"github.com/edgeorch/orchestrator/internal/logging"
	"github.com/edgeorch/orchestrator/internal/orchestrator"
	"github.com/edgeorch/orchestrator/internal/telemetry"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Edge workload orchestrator",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start accepting clients and dispatching to the backend cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logging.Init("edge-orchestrator")

	traceShutdown := telemetry.InitTracer(ctx, "edge-orchestrator")
	metricsShutdown, instruments := telemetry.InitMetrics(ctx, "edge-orchestrator")
	defer telemetry.Flush(context.Background(), traceShutdown)
	defer telemetry.Flush(context.Background(), metricsShutdown)

	clusterTopology, err := cfg.BuildCluster()
	if err != nil {
		return err
	}
	if clusterTopology.IsEmpty() {
		return fmt.Errorf("orchestrator: no backends configured")
	}

	core := orchestrator.New(orchestrator.Config{
		Port:             cfg.Port,
		Cluster:          clusterTopology,
		Scheduler:        cfg.BuildScheduler(),
		AdmissionPolicy:  cfg.BuildAdmissionPolicy(),
		ScalingPolicy:    cfg.BuildScalingPolicy(),
		AdmissionTimeout: cfg.AdmissionTimeout,
		Observer:         telemetry.Observer{Instruments: instruments},
	})
	if cfg.DeviceManagerEnabled {
		core.WithDeviceManager(cfg.BuildOperatingPoints())
	}

	if err := core.Start(); err != nil {
		return fmt.Errorf("orchestrator: start: %w", err)
	}
	slog.Info("orchestrator serving", "port", cfg.Port, "backends", clusterTopology.GetN())

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	<-sigCtx.Done()

	slog.Info("shutdown signal received, draining")
	core.Shutdown()
	return nil
}
