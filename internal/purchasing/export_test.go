package purchasing

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type staticDirectory struct {
	refs []SupplierRef
}

func (d *staticDirectory) ListSupplierRefs(ctx context.Context) ([]SupplierRef, error) {
	return d.refs, nil
}

func TestWriteCSVFormatsBalances(t *testing.T) {
	port := &countingOrdersPort{orders: supplierOrders()}
	calc := NewBalanceCalculator(port, nil, time.Minute)
	exporter := NewBalanceExporter(&staticDirectory{refs: []SupplierRef{{ID: 7, Name: "Cedar Supply"}}}, calc)

	var buf bytes.Buffer
	require.NoError(t, exporter.WriteCSV(context.Background(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Supplier ID", "Supplier", "Total Owed", "Total Paid", "Balance"}, rows[0])
	require.Equal(t, []string{"7", "Cedar Supply", "150.00", "30.00", "120.00"}, rows[1])
}

func TestWriteCSVKeepsLargeAmountsExact(t *testing.T) {
	// Values past float64's exact integer range must still round-trip to the
	// cent, with grouping only on the integer digits.
	port := &countingOrdersPort{orders: map[int64][]PurchaseOrder{
		12045: {
			{ID: 1, SupplierID: 12045, Status: StatusSent, TotalAmount: decimal.RequireFromString("1234567.89")},
			{ID: 2, SupplierID: 12045, Status: StatusReceived, TotalAmount: decimal.RequireFromString("9007199254740993.01")},
		},
	}}
	calc := NewBalanceCalculator(port, nil, time.Minute)
	exporter := NewBalanceExporter(&staticDirectory{refs: []SupplierRef{{ID: 12045, Name: "Quarry Freight"}}}, calc)

	var buf bytes.Buffer
	require.NoError(t, exporter.WriteCSV(context.Background(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "12045", rows[1][0])
	require.Equal(t, "1,234,567.89", rows[1][2])
	require.Equal(t, "9,007,199,254,740,993.01", rows[1][3])
}
