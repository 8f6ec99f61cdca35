package enums

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// Final reports whether the payment has left INITIATED. A payment leaves
// INITIATED exactly once; any later signal for it is a no-op.
func (s PaymentStatus) Final() bool {
	return s != PaymentStatusInitiated
}
