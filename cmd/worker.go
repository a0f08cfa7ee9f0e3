package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/rentpay/internal/payment"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the pending-payment reconciler`,
}

var reconcilerWorkerCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Start the pending-payment reconciler",
	Long:  `Sweep payments stuck in PENDING, verify them against the gateway and time out stale ones`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcilerWorker()
	},
}

var (
	reconcileInterval time.Duration
	reconcileWorkers  int
)

func startReconcilerWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	cfg := payment.ReconcilerConfig{
		Interval:     deps.Config.Reconciler.Interval,
		PendingAge:   deps.Config.Reconciler.PendingAge,
		TimeoutAge:   deps.Config.Reconciler.TimeoutAge,
		MaxWorkers:   deps.Config.Reconciler.MaxWorkers,
		JobQueueSize: deps.Config.Reconciler.JobQueueSize,
		BatchSize:    deps.Config.Reconciler.BatchSize,
	}
	if reconcileInterval > 0 {
		cfg.Interval = reconcileInterval
	}
	if reconcileWorkers > 0 {
		cfg.MaxWorkers = reconcileWorkers
	}

	reconciler := payment.NewReconciler(cfg, deps.PaymentRepo, deps.Gateway, deps.PaymentService, deps.Logger)
	reconciler.Start(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	deps.Logger.Info("reconciler worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	deps.Logger.Info("received signal, shutting down reconciler", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		reconciler.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		deps.Logger.Info("reconciler shutdown complete")
	case <-ctx.Done():
		deps.Logger.Warn("shutdown timeout reached, forcing exit")
	}

	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("database close error", "error", err)
	}
}

func init() {
	reconcilerWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", 0, "Sweep interval (overrides config)")
	reconcilerWorkerCmd.Flags().IntVar(&reconcileWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")

	workerCmd.AddCommand(reconcilerWorkerCmd)
}
