package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/paynow"
	pgrepo "github.com/Arnold003-blacko/etosha-backend-sub000/internal/repo/postgres"
	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
	paymentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/payments"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/settlement"
)

func TestCashPaymentRecordsAndReturnsBalance(t *testing.T) {
	purchases := &hPurchaseStore{records: map[int64]pgrepo.PurchaseRecord{
		7: {ID: 7, MemberID: 10, Balance: decimal.RequireFromString("100.00")},
	}}
	settler := &hSettler{
		applyResult: settlement.ApplyResult{
			PaymentID:      "pay-1",
			PurchaseStatus: enums.PurchaseStatusPartiallyPaid,
			Balance:        decimal.RequireFromString("40.00"),
		},
	}

	service := paymentsvc.NewService(paymentsvc.Dependencies{Purchases: purchases, Settler: settler})
	handler := NewPaymentHandler(service)

	resp := performPaymentRequest(t, handler.Cash, http.MethodPost, "/purchases/7/payments/cash", "7",
		`{"amount":"60.00","method":"CASH"}`, 10)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"balance":"40.00"`) {
		t.Fatalf("expected balance in response, got %s", resp.Body.String())
	}
}

func TestCashPaymentRejectsBadAmount(t *testing.T) {
	service := paymentsvc.NewService(paymentsvc.Dependencies{
		Purchases: &hPurchaseStore{records: map[int64]pgrepo.PurchaseRecord{}},
		Settler:   &hSettler{},
	})
	handler := NewPaymentHandler(service)

	resp := performPaymentRequest(t, handler.Cash, http.MethodPost, "/purchases/7/payments/cash", "7",
		`{"amount":"12.345","method":"CASH"}`, 10)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
}

func TestCashPaymentMapsBalanceConflict(t *testing.T) {
	purchases := &hPurchaseStore{records: map[int64]pgrepo.PurchaseRecord{
		7: {ID: 7, MemberID: 10, Balance: decimal.RequireFromString("10.00")},
	}}
	settler := &hSettler{applyErr: settlement.ErrAmountExceedsBalance}

	service := paymentsvc.NewService(paymentsvc.Dependencies{Purchases: purchases, Settler: settler})
	handler := NewPaymentHandler(service)

	resp := performPaymentRequest(t, handler.Cash, http.MethodPost, "/purchases/7/payments/cash", "7",
		`{"amount":"60.00","method":"CASH"}`, 10)
	if resp.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d body=%s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "AMOUNT_EXCEEDS_BALANCE") {
		t.Fatalf("expected balance conflict code, got %s", resp.Body.String())
	}
}

func TestPollReturnsNotFoundForUnknownPayment(t *testing.T) {
	service := paymentsvc.NewService(paymentsvc.Dependencies{
		Payments:  &hPaymentStore{records: map[string]pgrepo.PaymentRecord{}},
		Purchases: &hPurchaseStore{records: map[int64]pgrepo.PurchaseRecord{}},
		Settler:   &hSettler{},
	})
	handler := NewPaymentHandler(service)

	router := chi.NewRouter()
	router.Get("/payments/{paymentID}/poll", handler.Poll)

	req := httptest.NewRequest(http.MethodGet, "/payments/missing/poll", nil)
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{MemberID: 10}))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
}

func TestWebhookAlwaysAcks(t *testing.T) {
	service := paymentsvc.NewService(paymentsvc.Dependencies{
		Payments:  &hPaymentStore{records: map[string]pgrepo.PaymentRecord{}},
		Purchases: &hPurchaseStore{records: map[int64]pgrepo.PurchaseRecord{}},
		Gateway:   &hGateway{},
		Settler:   &hSettler{},
	})
	handler := NewWebhookHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/gateway/webhook", strings.NewReader("tampered=body"))
	resp := httptest.NewRecorder()
	handler.Gateway(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("webhook must always ack with 200, got %d", resp.Code)
	}
}

func TestPaymentEndpointsRequireAuth(t *testing.T) {
	handler := NewPaymentHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/purchases/7/payments/cash", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.Cash(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
}

func performPaymentRequest(t *testing.T, fn http.HandlerFunc, method, target, purchaseID, body string, memberID int64) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("purchaseID", purchaseID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = authsvc.WithIdentity(ctx, authsvc.Identity{MemberID: memberID})
	req = req.WithContext(ctx)

	resp := httptest.NewRecorder()
	fn(resp, req)
	return resp
}

type hPurchaseStore struct {
	records map[int64]pgrepo.PurchaseRecord
}

func (s *hPurchaseStore) FindByID(_ context.Context, purchaseID int64) (pgrepo.PurchaseRecord, error) {
	rec, ok := s.records[purchaseID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return rec, nil
}

type hPaymentStore struct {
	records map[string]pgrepo.PaymentRecord
}

func (s *hPaymentStore) CreateInitiated(_ context.Context, in pgrepo.DeferredCreateInput) (pgrepo.PaymentRecord, int64, error) {
	rec := pgrepo.PaymentRecord{
		ID:         "pay-" + in.Reference,
		PurchaseID: in.PurchaseID,
		MemberID:   in.MemberID,
		Amount:     in.Amount,
		Method:     in.Method,
		Status:     enums.PaymentStatusInitiated,
		Reference:  in.Reference,
	}
	s.records[rec.ID] = rec
	return rec, 0, nil
}

func (s *hPaymentStore) FindByID(_ context.Context, paymentID string) (pgrepo.PaymentRecord, error) {
	rec, ok := s.records[paymentID]
	if !ok {
		return pgrepo.PaymentRecord{}, pgrepo.ErrPaymentNotFound
	}
	return rec, nil
}

func (s *hPaymentStore) FindByReference(_ context.Context, reference string) (pgrepo.PaymentRecord, error) {
	for _, rec := range s.records {
		if rec.Reference == reference {
			return rec, nil
		}
	}
	return pgrepo.PaymentRecord{}, pgrepo.ErrPaymentNotFound
}

type hGateway struct{}

func (s *hGateway) InitiateRedirect(context.Context, string, decimal.Decimal, string) (paynow.RedirectResponse, error) {
	return paynow.RedirectResponse{}, nil
}

func (s *hGateway) InitiateMobilePush(context.Context, string, decimal.Decimal, string, string) (paynow.PushResponse, error) {
	return paynow.PushResponse{}, nil
}

func (s *hGateway) Poll(context.Context, string) (paynow.PollResult, error) {
	return paynow.PollResult{}, nil
}

func (s *hGateway) VerifyWebhook(string) (url.Values, bool) {
	return nil, false
}

type hSettler struct {
	applyResult settlement.ApplyResult
	applyErr    error

	finalizeResult settlement.FinalizeResult
	finalizeErr    error
}

func (s *hSettler) ApplyImmediate(_ context.Context, _, _ int64, _ decimal.Decimal, _ enums.PaymentMethod) (settlement.ApplyResult, error) {
	if s.applyErr != nil {
		return settlement.ApplyResult{}, s.applyErr
	}
	res := s.applyResult
	if res.PaidAt == nil && res.PurchaseStatus == enums.PurchaseStatusPaid {
		now := time.Now().UTC()
		res.PaidAt = &now
	}
	return res, nil
}

func (s *hSettler) Finalize(_ context.Context, _ string, _ string) (settlement.FinalizeResult, error) {
	if s.finalizeErr != nil {
		return settlement.FinalizeResult{}, s.finalizeErr
	}
	return s.finalizeResult, nil
}
