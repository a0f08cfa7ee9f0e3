package payment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/rentpay/internal/gateway"
)

// ReconcilerConfig tunes the pending-payment sweep.
type ReconcilerConfig struct {
	Interval     time.Duration
	PendingAge   time.Duration
	TimeoutAge   time.Duration
	MaxWorkers   int
	JobQueueSize int
	BatchSize    int
}

// reconcileJob carries one stale pending payment to a worker.
type reconcileJob struct {
	Payment *paymentmodel.Payment
}

// Reconciler sweeps payments stuck in PENDING and resolves them from
// the gateway's authoritative record. Payments pending past TimeoutAge
// are failed outright. Every transition goes through the same
// conditional update as the webhook path, so a webhook landing
// mid-sweep is never overwritten.
type Reconciler struct {
	cfg      ReconcilerConfig
	repo     RepositoryAPI
	gateway  GatewayAPI
	service  ServiceAPI
	logger   *slog.Logger
	jobQueue chan reconcileJob
	pool     chan chan reconcileJob
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewReconciler(cfg ReconcilerConfig, repo RepositoryAPI, gw GatewayAPI, svc ServiceAPI, logger *slog.Logger) *Reconciler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 64
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		cfg:      cfg,
		repo:     repo,
		gateway:  gw,
		service:  svc,
		logger:   logger,
		jobQueue: make(chan reconcileJob, cfg.JobQueueSize),
		pool:     make(chan chan reconcileJob, cfg.MaxWorkers),
	}
}

// Start launches the workers, the dispatcher and the sweep ticker.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.cfg.MaxWorkers; i++ {
		w := newReconcileWorker(i+1, r)
		r.wg.Add(1)
		go w.start(ctx, &r.wg)
	}

	r.wg.Add(1)
	go r.dispatch(ctx)

	r.wg.Add(1)
	go r.sweepLoop(ctx)

	r.logger.Info("reconciler started",
		"interval", r.cfg.Interval,
		"pending_age", r.cfg.PendingAge,
		"timeout_age", r.cfg.TimeoutAge,
		"workers", r.cfg.MaxWorkers)
}

// Shutdown stops the sweep and waits for in-flight jobs to drain.
func (r *Reconciler) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep enqueues every payment that has been PENDING longer than
// PendingAge. Payments younger than that are left alone so the normal
// webhook path gets the first shot.
func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.PendingAge)

	stale, err := r.repo.ListStalePending(cutoff, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("failed to list stale pending payments", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("sweeping stale pending payments", "count", len(stale))

	for i := range stale {
		select {
		case <-ctx.Done():
			return
		case r.jobQueue <- reconcileJob{Payment: stale[i]}:
		}
	}
}

func (r *Reconciler) dispatch(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobQueue:
			select {
			case <-ctx.Done():
				return
			case workerQueue := <-r.pool:
				select {
				case workerQueue <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

type reconcileWorker struct {
	id         int
	reconciler *Reconciler
	jobs       chan reconcileJob
}

func newReconcileWorker(id int, r *Reconciler) *reconcileWorker {
	return &reconcileWorker{
		id:         id,
		reconciler: r,
		jobs:       make(chan reconcileJob),
	}
}

func (w *reconcileWorker) start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case w.reconciler.pool <- w.jobs:
		}

		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.reconciler.resolve(ctx, job.Payment)
		}
	}
}

// resolve decides the fate of one stale pending payment. Order
// matters: the timeout check runs first so a payment the gateway never
// heard of still fails instead of staying PENDING forever.
func (r *Reconciler) resolve(ctx context.Context, p *paymentmodel.Payment) {
	logger := r.logger.With("payment_id", p.ID, "gateway_tx_ref", p.GatewayTxRef)

	if time.Since(p.CreatedAt) > r.cfg.TimeoutAge {
		reason := timedOutReason
		_, transitioned, err := r.service.ApplyGatewayOutcome(ctx, p.GatewayTxRef, OutcomeFailed, &reason)
		if err != nil {
			logger.Error("failed to time out payment", "error", err)
			return
		}
		if transitioned {
			logger.Info("timed out stale pending payment",
				"pending_for", time.Since(p.CreatedAt).Round(time.Second))
		}
		return
	}

	result, err := r.gateway.VerifyTransaction(ctx, p.GatewayTxRef)
	if err != nil {
		logger.Warn("gateway verification failed, leaving pending", "error", err)
		return
	}

	switch result.Status {
	case gateway.VerifyStatusSuccess:
		if _, transitioned, err := r.service.ApplyGatewayOutcome(ctx, p.GatewayTxRef, OutcomeSuccess, nil); err != nil {
			logger.Error("failed to apply reconciled success", "error", err)
		} else if transitioned {
			logger.Info("reconciled payment to success")
		}
	case gateway.VerifyStatusFailed:
		reason := "payment failed at gateway"
		if _, transitioned, err := r.service.ApplyGatewayOutcome(ctx, p.GatewayTxRef, OutcomeFailed, &reason); err != nil {
			logger.Error("failed to apply reconciled failure", "error", err)
		} else if transitioned {
			logger.Info("reconciled payment to failed")
		}
	default:
		logger.Debug("gateway still reports pending", "gateway_status", result.Status)
	}
}
