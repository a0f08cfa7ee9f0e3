package payment_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/rentpay/internal/core/events"
	paymentPkg "github.com/frahmantamala/rentpay/internal/payment"
)

var _ = Describe("Reconciler", func() {
	var (
		service    *paymentPkg.PaymentService
		mockRepo   *mockPaymentRepository
		mockGw     *mockGateway
		reconciler *paymentPkg.Reconciler
		ctx        context.Context
	)

	newReconciler := func(timeoutAge time.Duration) *paymentPkg.Reconciler {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		return paymentPkg.NewReconciler(paymentPkg.ReconcilerConfig{
			Interval:   20 * time.Millisecond,
			PendingAge: 10 * time.Minute,
			TimeoutAge: timeoutAge,
			MaxWorkers: 2,
			BatchSize:  10,
		}, mockRepo, mockGw, service, logger)
	}

	stalePayment := func(age time.Duration) *paymentmodel.Payment {
		resp, err := service.Initiate(ctx, validRequest())
		Expect(err).ToNot(HaveOccurred())
		stored, err := mockRepo.GetByID(uuid.MustParse(resp.PaymentID))
		Expect(err).ToNot(HaveOccurred())
		stored.CreatedAt = time.Now().Add(-age)
		return stored
	}

	BeforeEach(func() {
		mockRepo = newMockPaymentRepository()
		mockGw = &mockGateway{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		eventBus := events.NewEventBus(logger)
		service = paymentPkg.NewPaymentService(mockRepo, mockGw, eventBus, logger, 5*time.Second)
		ctx = context.Background()
	})

	AfterEach(func() {
		if reconciler != nil {
			reconciler.Shutdown()
			reconciler = nil
		}
	})

	Context("when the gateway confirms a stale pending payment", func() {
		It("should reconcile it to SUCCESS", func() {
			// Given
			stored := stalePayment(time.Hour)
			mockGw.verifyStatus = "success"

			// When
			reconciler = newReconciler(24 * time.Hour)
			reconciler.Start(ctx)

			// Then
			Eventually(func() string {
				return mockRepo.statusOf(stored.ID)
			}, time.Second, 10*time.Millisecond).Should(Equal(paymentmodel.StatusSuccess))
		})
	})

	Context("when the gateway reports the payment failed", func() {
		It("should reconcile it to FAILED", func() {
			// Given
			stored := stalePayment(time.Hour)
			mockGw.verifyStatus = "failed"

			// When
			reconciler = newReconciler(24 * time.Hour)
			reconciler.Start(ctx)

			// Then
			Eventually(func() string {
				return mockRepo.statusOf(stored.ID)
			}, time.Second, 10*time.Millisecond).Should(Equal(paymentmodel.StatusFailed))
		})
	})

	Context("when the gateway still reports pending", func() {
		It("should leave the payment untouched", func() {
			// Given
			stored := stalePayment(time.Hour)
			mockGw.verifyStatus = "pending"

			// When
			reconciler = newReconciler(24 * time.Hour)
			reconciler.Start(ctx)

			// Then
			Consistently(func() string {
				return mockRepo.statusOf(stored.ID)
			}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(paymentmodel.StatusPending))
		})
	})

	Context("when a payment has been pending past the timeout age", func() {
		It("should fail it without consulting the gateway", func() {
			// Given
			stored := stalePayment(time.Hour)
			mockGw.verifyStatus = "success"

			// When
			reconciler = newReconciler(30 * time.Minute)
			reconciler.Start(ctx)

			// Then
			Eventually(func() string {
				return mockRepo.statusOf(stored.ID)
			}, time.Second, 10*time.Millisecond).Should(Equal(paymentmodel.StatusFailed))

			p, err := mockRepo.GetByID(stored.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.FailureReason).ToNot(BeNil())
			Expect(*p.FailureReason).To(Equal("payment timed out"))
		})
	})

	Context("when a pending payment is still fresh", func() {
		It("should not touch it", func() {
			// Given
			resp, err := service.Initiate(ctx, validRequest())
			Expect(err).ToNot(HaveOccurred())

			// When
			reconciler = newReconciler(24 * time.Hour)
			reconciler.Start(ctx)

			// Then
			Consistently(func() string {
				return mockRepo.statusOf(uuid.MustParse(resp.PaymentID))
			}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(paymentmodel.StatusPending))
		})
	})

	Context("when shutting down while jobs are in flight", func() {
		It("should stop promptly instead of blocking on the worker hand-off", func() {
			// Given
			for i := 0; i < 5; i++ {
				stalePayment(time.Hour)
			}
			mockGw.verifyStatus = "pending"
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

			// When / Then
			for i := 0; i < 50; i++ {
				r := paymentPkg.NewReconciler(paymentPkg.ReconcilerConfig{
					Interval:   time.Millisecond,
					PendingAge: 10 * time.Minute,
					TimeoutAge: 24 * time.Hour,
					MaxWorkers: 1,
					BatchSize:  10,
				}, mockRepo, mockGw, service, logger)
				r.Start(ctx)
				time.Sleep(2 * time.Millisecond)

				stopped := make(chan struct{})
				go func() {
					r.Shutdown()
					close(stopped)
				}()
				Eventually(stopped, 2*time.Second).Should(BeClosed())
			}
		})
	})
})
