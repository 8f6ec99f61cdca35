package enums

type PurchaseStatus string

const (
	PurchaseStatusPendingPayment PurchaseStatus = "PENDING_PAYMENT"
	PurchaseStatusPartiallyPaid  PurchaseStatus = "PARTIALLY_PAID"
	PurchaseStatusPaid           PurchaseStatus = "PAID"
	PurchaseStatusCancelled      PurchaseStatus = "CANCELLED"
)

// Terminal reports whether no further payment processing is permitted.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusPaid || s == PurchaseStatusCancelled
}
