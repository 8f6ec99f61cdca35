package handlers

import (
	"errors"
	"net/http"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
	authsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/auth"
	purchasesvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/purchases"
	settlementsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/settlement"
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/transport/http/dto"
	httperrors "github.com/Arnold003-blacko/etosha-backend-sub000/internal/transport/http/errors"
)

type PurchaseHandler struct {
	purchases  *purchasesvc.Service
	settlement *settlementsvc.Service
}

func NewPurchaseHandler(purchases *purchasesvc.Service, settlement *settlementsvc.Service) *PurchaseHandler {
	return &PurchaseHandler{
		purchases:  purchases,
		settlement: settlement,
	}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	var req dto.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	input := purchasesvc.InitiateInput{
		ProductID: req.ProductID,
		Kind:      enums.PurchaseKind(req.Kind),
		PlanID:    req.PlanID,
	}
	if req.DateOfBirth != nil {
		dob, ok := parseDate(*req.DateOfBirth)
		if !ok {
			writeBadRequest(w, "VALIDATION_ERROR", "date_of_birth must be YYYY-MM-DD")
			return
		}
		input.DateOfBirth = &dob
	}
	if req.Fulfillment != nil {
		details := purchasesvc.FulfillmentInput{
			DeceasedName:   req.Fulfillment.DeceasedName,
			NextOfKin:      req.Fulfillment.NextOfKin,
			NextOfKinPhone: req.Fulfillment.NextOfKinPhone,
			Notes:          req.Fulfillment.Notes,
		}
		if req.Fulfillment.DateOfDeath != nil {
			dod, ok := parseDate(*req.Fulfillment.DateOfDeath)
			if !ok {
				writeBadRequest(w, "VALIDATION_ERROR", "date_of_death must be YYYY-MM-DD")
				return
			}
			details.DateOfDeath = &dod
		}
		input.Fulfillment = &details
	}

	result, err := h.purchases.Initiate(r.Context(), identity.MemberID, input)
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation), errors.Is(err, purchasesvc.ErrDateOfBirthRequired):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
		case errors.Is(err, purchasesvc.ErrProductNotFound):
			writeNotFound(w, "PRODUCT_NOT_FOUND", "product not found")
		case errors.Is(err, purchasesvc.ErrPlanNotFound):
			writeNotFound(w, "PLAN_NOT_FOUND", "installment plan not found")
		case errors.Is(err, purchasesvc.ErrProductInactive), errors.Is(err, purchasesvc.ErrProductUnavailable):
			writeConflict(w, "PRODUCT_UNAVAILABLE", "product is not available for purchase")
		case errors.Is(err, purchasesvc.ErrPricingNotConfigured):
			writeConflict(w, "PRICING_NOT_CONFIGURED", "no price is configured for this purchase")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PurchaseCreateResponse{
		PurchaseID:  result.PurchaseID,
		Kind:        string(result.Kind),
		TotalAmount: result.TotalAmount.StringFixed(2),
		Balance:     result.Balance.StringFixed(2),
		Status:      string(result.Status),
	})
}

func (h *PurchaseHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.settlement == nil {
		writeInternal(w, "SETTLEMENT_SERVICE_UNAVAILABLE", "settlement service is unavailable")
		return
	}

	purchaseID, ok := purchaseIDFromURL(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	if err := h.settlement.Redeem(r.Context(), purchaseID, identity.MemberID); err != nil {
		switch {
		case errors.Is(err, settlementsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid redemption payload")
		case errors.Is(err, settlementsvc.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		case errors.Is(err, settlementsvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "purchase belongs to another member")
		case errors.Is(err, settlementsvc.ErrNotPaid):
			writeConflict(w, "PURCHASE_NOT_PAID", "purchase is not fully paid")
		case errors.Is(err, settlementsvc.ErrAlreadyRedeemed):
			writeConflict(w, "ALREADY_REDEEMED", "purchase has already been redeemed")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to redeem purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RedeemResponse{OK: true})
}
