package enums

import "strings"

type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "CASH"
	PaymentMethodManual    PaymentMethod = "MANUAL"
	PaymentMethodPaynowWeb PaymentMethod = "PAYNOW_WEB"
	PaymentMethodEcocash   PaymentMethod = "ECOCASH"
	PaymentMethodLegacy    PaymentMethod = "LEGACY"
)

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case PaymentMethodCash:
		return PaymentMethodCash, true
	case PaymentMethodManual:
		return PaymentMethodManual, true
	case PaymentMethodPaynowWeb:
		return PaymentMethodPaynowWeb, true
	case PaymentMethodEcocash:
		return PaymentMethodEcocash, true
	case PaymentMethodLegacy:
		return PaymentMethodLegacy, true
	default:
		return "", false
	}
}

// Deferred reports whether the method settles asynchronously through the
// gateway (poll URL / webhook) instead of at intake time.
func (m PaymentMethod) Deferred() bool {
	return m == PaymentMethodPaynowWeb || m == PaymentMethodEcocash
}
