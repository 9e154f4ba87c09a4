package purchasing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatOrderNumber(t *testing.T) {
	date := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.Equal(t, "PO1-20260314-0001", FormatOrderNumber("PO", 1, date, 1))
	require.Equal(t, "PO12-20260314-0042", FormatOrderNumber("PO", 12, date, 42))
	require.Equal(t, "ORD3-20260314-1234", FormatOrderNumber("ORD", 3, date, 1234))
}

func TestInvoiceNumberFor(t *testing.T) {
	require.Equal(t, "INV-PO1-20260314-0001", InvoiceNumberFor("PO1-20260314-0001"))
}
