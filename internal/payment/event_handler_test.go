package payment_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/rentpay/internal/core/events"
	"github.com/frahmantamala/rentpay/internal/notification"
	paymentPkg "github.com/frahmantamala/rentpay/internal/payment"
)

var _ = Describe("EventHandler", func() {
	var (
		bus             *events.EventBus
		notifyServer    *httptest.Server
		listingServer   *httptest.Server
		mu              sync.Mutex
		sentTemplates   []string
		sentBodies      []string
		sentLocales     []string
		approvedListing string
		ctx             context.Context
	)

	recordedTemplates := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), sentTemplates...)
	}

	BeforeEach(func() {
		sentTemplates = nil
		sentBodies = nil
		sentLocales = nil
		approvedListing = ""
		ctx = context.Background()

		notifyServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var msg struct {
				Template string `json:"template"`
				Body     string `json:"message"`
				Locale   string `json:"preferred_language"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&msg)).To(Succeed())
			mu.Lock()
			sentTemplates = append(sentTemplates, msg.Template)
			sentBodies = append(sentBodies, msg.Body)
			sentLocales = append(sentLocales, msg.Locale)
			mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
		}))

		listingServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			approvedListing = r.URL.Path
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		notifier := notification.NewClient(notification.Config{BaseURL: notifyServer.URL, Timeout: time.Second, MaxAttempts: 1}, logger)
		listings := notification.NewListingClient(listingServer.URL, time.Second, 1, logger)

		bus = events.NewEventBus(logger)
		paymentPkg.NewEventHandler(notifier, listings, logger).RegisterHandlers(bus)
	})

	AfterEach(func() {
		notifyServer.Close()
		listingServer.Close()
	})

	It("should register a handler for each lifecycle event", func() {
		Expect(bus.HandlerCount(events.EventTypePaymentInitiated)).To(Equal(1))
		Expect(bus.HandlerCount(events.EventTypePaymentSucceeded)).To(Equal(1))
		Expect(bus.HandlerCount(events.EventTypePaymentFailed)).To(Equal(1))
	})

	Context("on payment.initiated", func() {
		It("should send the initiation notification with the checkout link", func() {
			event := events.NewPaymentInitiatedEvent(
				uuid.NewString(), uuid.NewString(), "prop-7", "user-1", 250000,
				"https://checkout.example.com/abc", "en")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			Expect(recordedTemplates()).To(ConsistOf(notification.TemplatePaymentInitiated))
			mu.Lock()
			defer mu.Unlock()
			Expect(sentBodies[0]).To(ContainSubstring("https://checkout.example.com/abc"))
			Expect(sentBodies[0]).To(ContainSubstring("prop-7"))
		})
	})

	Context("on payment.succeeded", func() {
		It("should approve the listing and send the success notification", func() {
			event := events.NewPaymentSucceededEvent(
				uuid.NewString(), "prop-7", "user-1", 250000, "tx-123", "en")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(approvedListing).To(Equal("/properties/prop-7/approve"))
			Expect(sentTemplates).To(ConsistOf(notification.TemplatePaymentSuccess))
		})
	})

	Context("on payment.failed", func() {
		It("should send the failure notification", func() {
			event := events.NewPaymentFailedEvent(
				uuid.NewString(), "prop-7", "user-1", 250000, "tx-123", "card declined", "en")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			Expect(recordedTemplates()).To(ConsistOf(notification.TemplatePaymentFailed))
		})

		It("should use the timeout template when the payment timed out", func() {
			event := events.NewPaymentFailedEvent(
				uuid.NewString(), "prop-7", "user-1", 250000, "tx-123", "payment timed out", "en")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			Expect(recordedTemplates()).To(ConsistOf(notification.TemplatePaymentTimedOut))
		})
	})

	Context("locale handling", func() {
		It("should notify in the language recorded on the payment", func() {
			event := events.NewPaymentSucceededEvent(
				uuid.NewString(), "prop-7", "user-1", 250000, "tx-123", "am")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(sentLocales).To(ConsistOf("am"))
		})

		It("should fall back to English when the event carries no locale", func() {
			event := events.NewPaymentFailedEvent(
				uuid.NewString(), "prop-7", "user-1", 250000, "tx-123", "card declined", "")

			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(sentLocales).To(ConsistOf("en"))
		})
	})
})
