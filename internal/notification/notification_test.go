package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

var _ = Describe("renderTemplate", func() {
	It("should substitute vars into the message", func() {
		subject, message := renderTemplate("en", TemplatePaymentInitiated, map[string]string{
			"property_id":  "prop-1",
			"payment_link": "https://checkout.example.com/abc",
		})

		Expect(subject).To(ContainSubstring("Payment Initiated"))
		Expect(message).To(ContainSubstring("prop-1"))
		Expect(message).To(ContainSubstring("https://checkout.example.com/abc"))
		Expect(message).ToNot(ContainSubstring("{payment_link}"))
	})

	It("should render localized templates for am and om", func() {
		amSubject, _ := renderTemplate("am", TemplatePaymentSuccess, nil)
		omSubject, _ := renderTemplate("om", TemplatePaymentSuccess, nil)

		Expect(amSubject).ToNot(Equal(omSubject))
		Expect(amSubject).ToNot(BeEmpty())
		Expect(omSubject).ToNot(BeEmpty())
	})

	It("should fall back to English for an unknown locale", func() {
		subject, _ := renderTemplate("fr", TemplatePaymentFailed, nil)
		enSubject, _ := renderTemplate("en", TemplatePaymentFailed, nil)

		Expect(subject).To(Equal(enSubject))
	})
})

var _ = Describe("Client", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	})

	Describe("Send", func() {
		It("should post the rendered message to the notification service", func() {
			var got Message
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/notifications/send"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				w.WriteHeader(http.StatusAccepted)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second, MaxAttempts: 1}, logger)
			err := client.Send(context.Background(), "user-1", "en", TemplatePaymentSuccess, map[string]string{"property_id": "prop-9"})

			Expect(err).ToNot(HaveOccurred())
			Expect(got.UserID).To(Equal("user-1"))
			Expect(got.Template).To(Equal(TemplatePaymentSuccess))
			Expect(got.Body).To(ContainSubstring("prop-9"))
		})

		It("should retry server errors and give up after the configured attempts", func() {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second, MaxAttempts: 2}, logger)
			err := client.Send(context.Background(), "user-1", "en", TemplatePaymentFailed, nil)

			Expect(err).To(HaveOccurred())
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
		})

		It("should not retry client errors", func() {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusBadRequest)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second, MaxAttempts: 3}, logger)
			err := client.Send(context.Background(), "user-1", "en", TemplatePaymentFailed, nil)

			Expect(err).To(HaveOccurred())
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
		})
	})
})

var _ = Describe("ListingClient", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	})

	It("should call the listing service approve endpoint", func() {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			Expect(r.Method).To(Equal(http.MethodPost))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewListingClient(server.URL, time.Second, 1, logger)
		err := client.ApproveListing(context.Background(), "prop-42")

		Expect(err).ToNot(HaveOccurred())
		Expect(gotPath).To(Equal("/properties/prop-42/approve"))
	})

	It("should retry when the listing service is down", func() {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewListingClient(server.URL, time.Second, 3, logger)
		err := client.ApproveListing(context.Background(), "prop-42")

		Expect(err).ToNot(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})
})
