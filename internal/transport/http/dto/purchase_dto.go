package dto

type FulfillmentPayload struct {
	DeceasedName   string  `json:"deceased_name"`
	DateOfDeath    *string `json:"date_of_death,omitempty"`
	NextOfKin      string  `json:"next_of_kin,omitempty"`
	NextOfKinPhone string  `json:"next_of_kin_phone,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

type PurchaseCreateRequest struct {
	ProductID   int64               `json:"product_id"`
	Kind        string              `json:"kind"`
	PlanID      *int64              `json:"plan_id,omitempty"`
	DateOfBirth *string             `json:"date_of_birth,omitempty"`
	Fulfillment *FulfillmentPayload `json:"fulfillment,omitempty"`
}

// Money fields travel as fixed two-decimal strings.
type PurchaseCreateResponse struct {
	PurchaseID  int64  `json:"purchase_id"`
	Kind        string `json:"kind"`
	TotalAmount string `json:"total_amount"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
}

type RedeemResponse struct {
	OK bool `json:"ok"`
}
