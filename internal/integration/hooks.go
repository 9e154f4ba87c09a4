package integration

import (
	"context"
	"log/slog"

	"github.com/msa-suite/msa-suite/internal/purchasing"
	"github.com/msa-suite/msa-suite/jobs"
)

// Hooks reacts to purchasing lifecycle events: it emits structured log
// entries and refreshes supplier balances in the background.
type Hooks struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewHooks constructs integration hooks. The jobs client may be nil, in
// which case only logging happens.
func NewHooks(client *jobs.Client, logger *slog.Logger) *Hooks {
	return &Hooks{client: client, logger: logger}
}

// HandleOrderSent logs the send and schedules a balance refresh.
func (h *Hooks) HandleOrderSent(ctx context.Context, evt purchasing.OrderSentEvent) error {
	h.logger.Info("purchase order sent",
		slog.Int64("order_id", evt.OrderID),
		slog.String("number", evt.Number),
		slog.Int64("supplier_id", evt.SupplierID),
		slog.String("total", evt.Total.StringFixed(2)),
		slog.String("invoice", evt.InvoiceNumber))
	h.warmup(ctx)
	return nil
}

// HandleOrderReceived logs the receipt and schedules a balance refresh.
func (h *Hooks) HandleOrderReceived(ctx context.Context, evt purchasing.OrderReceivedEvent) error {
	h.logger.Info("purchase order received",
		slog.Int64("order_id", evt.OrderID),
		slog.String("number", evt.Number),
		slog.Int64("supplier_id", evt.SupplierID),
		slog.Int("lines", len(evt.Items)))
	h.warmup(ctx)
	return nil
}

// HandleOrderCancelled logs the cancellation and schedules a balance refresh.
func (h *Hooks) HandleOrderCancelled(ctx context.Context, evt purchasing.OrderCancelledEvent) error {
	h.logger.Info("purchase order cancelled",
		slog.Int64("order_id", evt.OrderID),
		slog.String("number", evt.Number),
		slog.Int64("supplier_id", evt.SupplierID))
	h.warmup(ctx)
	return nil
}

func (h *Hooks) warmup(ctx context.Context) {
	if h.client == nil {
		return
	}
	if _, err := h.client.EnqueueBalanceWarmup(ctx); err != nil {
		h.logger.Warn("enqueue balance warmup", slog.Any("error", err))
	}
}
