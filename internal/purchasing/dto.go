package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderListItem is one row of the order listing, joined with supplier data.
type OrderListItem struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	BranchID     int64           `json:"branch_id"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type createOrderRequest struct {
	SupplierID   int64         `json:"supplier_id" validate:"required,gt=0"`
	BranchID     int64         `json:"branch_id" validate:"required,gt=0"`
	ExpectedDate *time.Time    `json:"expected_date"`
	Notes        string        `json:"notes"`
	Items        []itemRequest `json:"items" validate:"dive"`
}

type itemRequest struct {
	PartID   int64           `json:"part_id" validate:"required,gt=0"`
	Qty      int64           `json:"qty" validate:"required,gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type orderResponse struct {
	Order PurchaseOrder `json:"order"`
	Items []OrderItem   `json:"items,omitempty"`
}

type listResponse struct {
	Orders []OrderListItem `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
