package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/infra/paynow"
	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
	paymentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/payments"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/transport/http/dto"
	httperrors "github.com/Arnold003-blacko/etosha-backend-sub000/internal/transport/http/errors"
)

type PaymentHandler struct {
	payments *paymentsvc.Service
}

func NewPaymentHandler(payments *paymentsvc.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Cash records an immediate cash or manual payment against a purchase.
func (h *PaymentHandler) Cash(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	purchaseID, ok := purchaseIDFromURL(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	var req dto.CashPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "amount must be a positive decimal with at most two fraction digits")
		return
	}

	result, err := h.payments.RecordImmediate(r.Context(), identity.MemberID, purchaseID, paymentsvc.ImmediateInput{
		Amount: amount,
		Method: enums.PaymentMethod(req.Method),
	})
	if err != nil {
		h.writePaymentError(w, err, "failed to record payment")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.CashPaymentResponse{
		PaymentID:      result.PaymentID,
		PurchaseStatus: string(result.PurchaseStatus),
		Balance:        result.Balance.StringFixed(2),
		PaidAt:         result.PaidAt,
	})
}

// Deferred initiates a gateway payment (hosted redirect or mobile push).
func (h *PaymentHandler) Deferred(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	purchaseID, ok := purchaseIDFromURL(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	var req dto.DeferredPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "amount must be a positive decimal with at most two fraction digits")
		return
	}

	result, err := h.payments.InitiateDeferred(r.Context(), identity.MemberID, purchaseID, paymentsvc.DeferredInput{
		Amount: amount,
		Method: enums.PaymentMethod(req.Method),
		Phone:  req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrInvalidPhone):
			writeBadRequest(w, "INVALID_PHONE", "phone number cannot receive a mobile push")
		case errors.Is(err, paymentsvc.ErrPushCapExceeded):
			writeBadRequest(w, "PUSH_CAP_EXCEEDED", "amount exceeds the mobile push limit, try paying in smaller amounts")
		case errors.Is(err, paynow.ErrGatewayRejected), errors.Is(err, paynow.ErrGatewayUnavailable):
			writeBadGateway(w, "GATEWAY_ERROR", "payment gateway rejected or did not answer the request")
		default:
			h.writePaymentError(w, err, "failed to initiate payment")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.DeferredPaymentResponse{
		PaymentID:    result.PaymentID,
		Reference:    result.Reference,
		RedirectURL:  result.RedirectURL,
		PollURL:      result.PollURL,
		Instructions: result.Instructions,
		Superseded:   result.Superseded,
	})
}

// Poll reports a payment's current status, settling it when the gateway has
// reached a terminal state.
func (h *PaymentHandler) Poll(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	paymentID := chi.URLParam(r, "paymentID")

	out, err := h.payments.Poll(r.Context(), identity.MemberID, paymentID)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment id")
		case errors.Is(err, paymentsvc.ErrPaymentNotFound):
			writeNotFound(w, "PAYMENT_NOT_FOUND", "payment not found")
		case errors.Is(err, paymentsvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "payment belongs to another member")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to poll payment")
		}
		return
	}

	resp := dto.PollResponse{
		PaymentStatus:  string(out.PaymentStatus),
		PurchaseStatus: string(out.PurchaseStatus),
		Settled:        out.Settled,
		Degraded:       out.Degraded,
	}
	if out.PurchaseStatus != "" {
		resp.Balance = out.Balance.StringFixed(2)
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, paymentsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid payment payload")
	case errors.Is(err, paymentsvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, paymentsvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "purchase belongs to another member")
	case errors.Is(err, paymentsvc.ErrAlreadyPaid):
		writeConflict(w, "ALREADY_PAID", "purchase is already fully paid")
	case errors.Is(err, paymentsvc.ErrCancelled):
		writeConflict(w, "PURCHASE_CANCELLED", "purchase is cancelled")
	case errors.Is(err, paymentsvc.ErrAmountExceedsBalance):
		writeConflict(w, "AMOUNT_EXCEEDS_BALANCE", "amount exceeds the outstanding balance")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}
