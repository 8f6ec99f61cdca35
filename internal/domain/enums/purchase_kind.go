package enums

type PurchaseKind string

const (
	PurchaseKindImmediate PurchaseKind = "IMMEDIATE"
	PurchaseKindFuture    PurchaseKind = "FUTURE"
)

func ParsePurchaseKind(raw string) (PurchaseKind, bool) {
	switch PurchaseKind(raw) {
	case PurchaseKindImmediate, PurchaseKindFuture:
		return PurchaseKind(raw), true
	default:
		return "", false
	}
}
