package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/rentpay/internal"
	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/rentpay/internal/gateway"
	paymentPkg "github.com/frahmantamala/rentpay/internal/payment"
)

// Mock service recording applied outcomes
type mockPaymentService struct {
	appliedTxRef   string
	appliedOutcome string
	appliedReason  *string
	applyCalls     int
	transitioned   bool
	applyErr       error
}

func (m *mockPaymentService) Initiate(ctx context.Context, req *paymentPkg.InitiatePaymentRequest) (*paymentPkg.InitiatePaymentResponse, error) {
	return nil, nil
}

func (m *mockPaymentService) GetStatus(ctx context.Context, id uuid.UUID) (*paymentPkg.PaymentStatusResponse, error) {
	return nil, nil
}

func (m *mockPaymentService) ApplyGatewayOutcome(ctx context.Context, txRef, outcome string, failureReason *string) (*paymentmodel.Payment, bool, error) {
	m.applyCalls++
	m.appliedTxRef = txRef
	m.appliedOutcome = outcome
	m.appliedReason = failureReason
	if m.applyErr != nil {
		return nil, false, m.applyErr
	}
	return &paymentmodel.Payment{ID: uuid.New(), Status: paymentmodel.StatusSuccess}, m.transitioned, nil
}

var _ = Describe("WebhookHandler", func() {
	const secret = "webhook-test-secret"

	var (
		handler     *paymentPkg.WebhookHandler
		mockService *mockPaymentService
		verifier    *gateway.WebhookVerifier
	)

	signedRequest := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/gateway", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Gateway-Signature", signature)
		}
		rec := httptest.NewRecorder()
		handler.HandleGatewayWebhook(rec, req)
		return rec
	}

	webhookBody := func(txRef, status, reason string) []byte {
		body, err := json.Marshal(map[string]interface{}{
			"event": "charge.completed",
			"data": map[string]string{
				"tx_ref":         txRef,
				"status":         status,
				"failure_reason": reason,
			},
		})
		Expect(err).ToNot(HaveOccurred())
		return body
	}

	BeforeEach(func() {
		mockService = &mockPaymentService{transitioned: true}
		verifier = gateway.NewWebhookVerifier(secret)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentPkg.NewWebhookHandler(logger, mockService, verifier)
	})

	Context("when the signature is valid", func() {
		It("should apply a success outcome and answer 200", func() {
			// Given
			body := webhookBody("tx-abc", "success", "")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mockService.applyCalls).To(Equal(1))
			Expect(mockService.appliedTxRef).To(Equal("tx-abc"))
			Expect(mockService.appliedOutcome).To(Equal(paymentPkg.OutcomeSuccess))
			Expect(mockService.appliedReason).To(BeNil())
		})

		It("should pass the failure reason through on a failed outcome", func() {
			// Given
			body := webhookBody("tx-abc", "failed", "card declined")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mockService.appliedOutcome).To(Equal(paymentPkg.OutcomeFailed))
			Expect(mockService.appliedReason).ToNot(BeNil())
			Expect(*mockService.appliedReason).To(Equal("card declined"))
		})

		It("should answer 200 for a duplicate delivery that changed nothing", func() {
			// Given
			mockService.transitioned = false
			body := webhookBody("tx-abc", "success", "")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["transitioned"]).To(BeFalse())
		})
	})

	Context("when the signature is missing or wrong", func() {
		It("should answer 401 without touching the service", func() {
			// Given
			body := webhookBody("tx-abc", "success", "")

			// When
			rec := signedRequest(body, "")

			// Then
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(mockService.applyCalls).To(Equal(0))
		})

		It("should reject a signature computed over a different body", func() {
			// Given
			body := webhookBody("tx-abc", "success", "")
			tampered := webhookBody("tx-abc", "failed", "")

			// When
			rec := signedRequest(tampered, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(mockService.applyCalls).To(Equal(0))
		})
	})

	Context("when the payload is malformed", func() {
		It("should answer 400 on invalid JSON", func() {
			// Given
			body := []byte("{not json")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.applyCalls).To(Equal(0))
		})

		It("should answer 400 when tx_ref is missing", func() {
			// Given
			body := webhookBody("", "success", "")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.applyCalls).To(Equal(0))
		})

		It("should answer 400 on an unknown status value", func() {
			// Given
			body := webhookBody("tx-abc", "refunded", "")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.applyCalls).To(Equal(0))
		})
	})

	Context("when the transaction is unknown", func() {
		It("should answer 404", func() {
			// Given
			mockService.applyErr = apperrors.ErrPaymentNotFound
			body := webhookBody("tx-unknown", "success", "")

			// When
			rec := signedRequest(body, verifier.Sign(body))

			// Then
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
