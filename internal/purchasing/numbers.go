package purchasing

import (
	"fmt"
	"time"
)

// FormatOrderNumber renders an order number as prefix + branch id + date +
// zero-padded daily sequence, e.g. PO1-20260828-0004.
func FormatOrderNumber(prefix string, branchID int64, date time.Time, seq int) string {
	return fmt.Sprintf("%s%d-%s-%04d", prefix, branchID, date.Format("20060102"), seq)
}

// InvoiceNumberFor derives the supplier invoice number from an order number.
func InvoiceNumberFor(orderNumber string) string {
	return "INV-" + orderNumber
}
