package rules

import (
	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
)

// FinalizeDecision describes what a terminal gateway signal does to a
// payment and its purchase. The storage layer executes it verbatim.
type FinalizeDecision struct {
	// WriteStatus is the payment status to persist. Empty means the payment
	// row is left untouched.
	WriteStatus enums.PaymentStatus
	// Apply is true when the payment amount mutates the purchase balance.
	Apply bool
	// AlreadyFinal is true when the payment had already left INITIATED and
	// the signal is absorbed as a no-op.
	AlreadyFinal bool
	// PurchaseCancelled is true when a success signal hit a cancelled
	// purchase and the payment is expired instead of applied.
	PurchaseCancelled bool
}

// FinalizeNeedsPurchase reports whether settling this signal must inspect
// the purchase row. Only a success signal against a live payment does.
func FinalizeNeedsPurchase(current, mapped enums.PaymentStatus) bool {
	return !current.Final() && mapped == enums.PaymentStatusSuccess
}

// DecideFinalize resolves one terminal gateway signal against the current
// payment and purchase state. A payment leaves INITIATED at most once: any
// signal after the first is absorbed. A success signal for a cancelled
// purchase expires the payment rather than applying money to a dead
// purchase. purchase is only consulted when FinalizeNeedsPurchase holds.
func DecideFinalize(current, mapped enums.PaymentStatus, purchase enums.PurchaseStatus) FinalizeDecision {
	if current.Final() {
		return FinalizeDecision{AlreadyFinal: true}
	}
	if mapped != enums.PaymentStatusSuccess {
		return FinalizeDecision{WriteStatus: mapped}
	}
	if purchase == enums.PurchaseStatusCancelled {
		return FinalizeDecision{
			WriteStatus:       enums.PaymentStatusExpired,
			PurchaseCancelled: true,
		}
	}
	return FinalizeDecision{
		WriteStatus: enums.PaymentStatusSuccess,
		Apply:       true,
	}
}
