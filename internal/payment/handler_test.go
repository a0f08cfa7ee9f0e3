package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/rentpay/internal"
	paymentmodel "github.com/frahmantamala/rentpay/internal/core/datamodel/payment"
	paymentPkg "github.com/frahmantamala/rentpay/internal/payment"
)

// Mock service returning canned handler responses
type stubPaymentService struct {
	initiateResp *paymentPkg.InitiatePaymentResponse
	initiateErr  error
	statusResp   *paymentPkg.PaymentStatusResponse
	statusErr    error
	gotRequest   *paymentPkg.InitiatePaymentRequest
	gotStatusID  uuid.UUID
}

func (s *stubPaymentService) Initiate(ctx context.Context, req *paymentPkg.InitiatePaymentRequest) (*paymentPkg.InitiatePaymentResponse, error) {
	s.gotRequest = req
	return s.initiateResp, s.initiateErr
}

func (s *stubPaymentService) GetStatus(ctx context.Context, id uuid.UUID) (*paymentPkg.PaymentStatusResponse, error) {
	s.gotStatusID = id
	return s.statusResp, s.statusErr
}

func (s *stubPaymentService) ApplyGatewayOutcome(ctx context.Context, txRef, outcome string, failureReason *string) (*paymentmodel.Payment, bool, error) {
	return nil, false, nil
}

var _ = Describe("Handler", func() {
	var (
		handler *paymentPkg.Handler
		stub    *stubPaymentService
		router  *chi.Mux
	)

	BeforeEach(func() {
		stub = &stubPaymentService{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentPkg.NewHandler(logger, stub)

		router = chi.NewRouter()
		router.Post("/payments/initiate", handler.Initiate)
		router.Get("/payments/{id}/status", handler.GetStatus)
	})

	Describe("Initiate", func() {
		Context("when the service accepts the request", func() {
			It("should answer 202 with the payment and checkout URL", func() {
				// Given
				stub.initiateResp = &paymentPkg.InitiatePaymentResponse{
					PaymentID:   uuid.NewString(),
					CheckoutURL: "https://checkout.example.com/abc",
					Status:      paymentmodel.StatusPending,
				}
				body, _ := json.Marshal(map[string]interface{}{
					"request_id":   uuid.NewString(),
					"property_id":  uuid.NewString(),
					"user_id":      uuid.NewString(),
					"amount_cents": 250000,
				})

				// When
				req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewReader(body))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusAccepted))

				var resp paymentPkg.InitiatePaymentResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.PaymentID).To(Equal(stub.initiateResp.PaymentID))
				Expect(resp.CheckoutURL).To(Equal(stub.initiateResp.CheckoutURL))
				Expect(stub.gotRequest.AmountCents).To(Equal(int64(250000)))
			})
		})

		Context("when the body is not JSON", func() {
			It("should answer 400", func() {
				// When
				req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewReader([]byte("{broken")))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		Context("when the idempotency key was reused with different parameters", func() {
			It("should answer 409", func() {
				// Given
				stub.initiateErr = apperrors.ErrRequestIDReused
				body, _ := json.Marshal(map[string]interface{}{
					"request_id":   uuid.NewString(),
					"property_id":  uuid.NewString(),
					"user_id":      uuid.NewString(),
					"amount_cents": 250000,
				})

				// When
				req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewReader(body))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusConflict))
			})
		})

		Context("when the gateway is unavailable", func() {
			It("should answer 503", func() {
				// Given
				stub.initiateErr = apperrors.NewGatewayUnavailableError(nil)
				body, _ := json.Marshal(map[string]interface{}{
					"request_id":   uuid.NewString(),
					"property_id":  uuid.NewString(),
					"user_id":      uuid.NewString(),
					"amount_cents": 250000,
				})

				// When
				req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewReader(body))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			})
		})
	})

	Describe("GetStatus", func() {
		Context("when the payment exists", func() {
			It("should answer 200 with the status payload", func() {
				// Given
				id := uuid.New()
				stub.statusResp = &paymentPkg.PaymentStatusResponse{Status: paymentmodel.StatusSuccess}

				// When
				req := httptest.NewRequest(http.MethodGet, "/payments/"+id.String()+"/status", nil)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(stub.gotStatusID).To(Equal(id))

				var resp paymentPkg.PaymentStatusResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Status).To(Equal(paymentmodel.StatusSuccess))
			})
		})

		Context("when the id is not a UUID", func() {
			It("should answer 400", func() {
				// When
				req := httptest.NewRequest(http.MethodGet, "/payments/not-a-uuid/status", nil)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		Context("when the payment does not exist", func() {
			It("should answer 404", func() {
				// Given
				stub.statusErr = apperrors.ErrPaymentNotFound

				// When
				req := httptest.NewRequest(http.MethodGet, "/payments/"+uuid.NewString()+"/status", nil)
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusNotFound))
			})
		})
	})
})
