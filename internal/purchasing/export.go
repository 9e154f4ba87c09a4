package purchasing

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SupplierRef identifies a supplier for export listings.
type SupplierRef struct {
	ID   int64
	Name string
}

// SupplierDirectory lists the suppliers to export balances for.
type SupplierDirectory interface {
	ListSupplierRefs(ctx context.Context) ([]SupplierRef, error)
}

// BalanceExporter serialises supplier balances to CSV.
type BalanceExporter struct {
	directory SupplierDirectory
	balances  *BalanceCalculator
	printer   *message.Printer
}

// NewBalanceExporter constructs an exporter.
func NewBalanceExporter(directory SupplierDirectory, balances *BalanceCalculator) *BalanceExporter {
	return &BalanceExporter{
		directory: directory,
		balances:  balances,
		printer:   message.NewPrinter(language.English),
	}
}

// WriteCSV emits one row per supplier with owed/paid/balance columns.
func (e *BalanceExporter) WriteCSV(ctx context.Context, w io.Writer) error {
	refs, err := e.directory.ListSupplierRefs(ctx)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Supplier ID", "Supplier", "Total Owed", "Total Paid", "Balance"}); err != nil {
		return err
	}
	for _, ref := range refs {
		balance, err := e.balances.Balance(ctx, ref.ID)
		if err != nil {
			return err
		}
		record := []string{
			strconv.FormatInt(ref.ID, 10),
			ref.Name,
			e.formatAmount(balance.TotalOwed),
			e.formatAmount(balance.TotalPaid),
			e.formatAmount(balance.Balance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// formatAmount renders the exact two-decimal form of the amount and uses the
// printer only to group the integer digits. Going through a float here would
// lose decimal exactness for large amounts.
func (e *BalanceExporter) formatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	dot := strings.LastIndexByte(fixed, '.')
	whole, frac := fixed[:dot], fixed[dot:]
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fixed
	}
	return e.printer.Sprintf("%d", n) + frac
}
