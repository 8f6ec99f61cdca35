package dto

import "time"

type CashPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

type CashPaymentResponse struct {
	PaymentID      string     `json:"payment_id"`
	PurchaseStatus string     `json:"purchase_status"`
	Balance        string     `json:"balance"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

type DeferredPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	Phone  string `json:"phone,omitempty"`
}

type DeferredPaymentResponse struct {
	PaymentID    string `json:"payment_id"`
	Reference    string `json:"reference"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	PollURL      string `json:"poll_url,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Superseded   int64  `json:"superseded"`
}

type PollResponse struct {
	PaymentStatus  string `json:"payment_status"`
	PurchaseStatus string `json:"purchase_status,omitempty"`
	Balance        string `json:"balance,omitempty"`
	Settled        bool   `json:"settled"`
	Degraded       bool   `json:"degraded,omitempty"`
}
