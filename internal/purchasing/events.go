package purchasing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ItemEvent describes one order line inside a lifecycle event.
type ItemEvent struct {
	PartID   int64
	Qty      int64
	UnitCost decimal.Decimal
}

// OrderSentEvent is emitted after an order transitions to SENT.
type OrderSentEvent struct {
	OrderID       int64
	Number        string
	SupplierID    int64
	Total         decimal.Decimal
	InvoiceNumber string
	SentAt        time.Time
}

// OrderReceivedEvent is emitted after an order transitions to RECEIVED.
type OrderReceivedEvent struct {
	OrderID    int64
	Number     string
	SupplierID int64
	ReceivedAt time.Time
	Items      []ItemEvent
}

// OrderCancelledEvent is emitted after an order transitions to CANCELLED.
type OrderCancelledEvent struct {
	OrderID     int64
	Number      string
	SupplierID  int64
	CancelledAt time.Time
}

// IntegrationHandler receives purchasing lifecycle events after commit.
type IntegrationHandler interface {
	HandleOrderSent(ctx context.Context, evt OrderSentEvent) error
	HandleOrderReceived(ctx context.Context, evt OrderReceivedEvent) error
	HandleOrderCancelled(ctx context.Context, evt OrderCancelledEvent) error
}
