package orders

import "time"

type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	UserID          string        `json:"user_id"`
	ProductType     string        `json:"product_type"`
	Quantity        int           `json:"quantity"`
	Status          Status        `json:"status"`
	Location        string        `json:"location,omitempty"`
	ConfirmedAt     *time.Time    `json:"confirmed_at"`
	ConfirmedBy     *string       `json:"confirmed_by"`
	ShippedAt       *time.Time    `json:"shipped_at"`
	CompletedAt     *time.Time    `json:"completed_at"`
	CancelledAt     *time.Time    `json:"cancelled_at"`
	CancelledReason *string       `json:"cancelled_reason"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Profile         *OwnerProfile `json:"profiles,omitempty"`
}

// OwnerProfile is the subset of the owner's profile joined onto an order.
type OwnerProfile struct {
	BusinessName string `json:"business_name"`
	Phone        string `json:"phone"`
}

// Deduction asks the inventory ledger to take Quantity of ProductType out of
// Location. OrderID is the idempotency key.
type Deduction struct {
	OrderID     string
	Location    string
	ProductType string
	Quantity    int
}
