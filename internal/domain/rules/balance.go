package rules

import (
	"github.com/shopspring/decimal"

	"github.com/Arnold003-blacko/etosha-backend-sub000/internal/domain/enums"
)

// BalanceChange is the result of applying one successful payment amount to a
// purchase. Invariants: Balance = total - PaidAmount and Balance >= 0.
type BalanceChange struct {
	PaidAmount decimal.Decimal
	Balance    decimal.Decimal
	Status     enums.PurchaseStatus
	NewlyPaid  bool
}

// ApplyPayment computes the purchase money fields after a payment of amount.
// An overshooting amount settles the purchase at exactly zero balance rather
// than driving it negative.
func ApplyPayment(total, paid, amount decimal.Decimal) BalanceChange {
	wasOutstanding := total.Sub(paid).IsPositive()

	newPaid := paid.Add(amount)
	if newPaid.GreaterThan(total) {
		newPaid = total
	}
	balance := total.Sub(newPaid)

	status := enums.PurchaseStatusPartiallyPaid
	if !balance.IsPositive() {
		status = enums.PurchaseStatusPaid
	} else if !newPaid.IsPositive() {
		status = enums.PurchaseStatusPendingPayment
	}

	return BalanceChange{
		PaidAmount: newPaid,
		Balance:    balance,
		Status:     status,
		NewlyPaid:  wasOutstanding && status == enums.PurchaseStatusPaid,
	}
}
