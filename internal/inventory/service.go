package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msa-suite/msa-suite/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPart(ctx context.Context, id int64) (Part, error)
	ListParts(ctx context.Context, limit, offset int, search string) ([]Part, int, error)
	StockLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	PriceHistory(ctx context.Context, partID int64, limit int) ([]PriceChange, error)
}

// TxRepository exposes transactional part operations.
type TxRepository interface {
	CreatePart(ctx context.Context, part Part) (int64, error)
	UpdatePart(ctx context.Context, part Part) error
	GetPartForUpdate(ctx context.Context, id int64) (Part, error)
	ApplyStockDelta(ctx context.Context, partID, delta int64) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error
	AppendPriceHistory(ctx context.Context, change PriceChange) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service coordinates part registry and stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the inventory service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreatePartInput describes a new part.
type CreatePartInput struct {
	SKU  string
	Name string
	Cost decimal.Decimal
}

// CreatePart registers a part with zero stock.
func (s *Service) CreatePart(ctx context.Context, input CreatePartInput) (Part, error) {
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Name) == "" {
		return Part{}, fmt.Errorf("inventory: sku and name required")
	}
	if input.Cost.IsNegative() {
		return Part{}, ErrInvalidCost
	}
	part := Part{SKU: input.SKU, Name: input.Name, Cost: input.Cost}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePart(ctx, part)
		if err != nil {
			return err
		}
		part.ID = id
		return nil
	})
	if err != nil {
		return Part{}, err
	}
	s.recordAudit(ctx, "PART_CREATE", part.ID, nil, map[string]any{"sku": part.SKU, "name": part.Name, "cost": part.Cost.StringFixed(2)})
	return part, nil
}

// UpdatePartCost changes the recorded cost and appends a price-history row.
func (s *Service) UpdatePartCost(ctx context.Context, partID int64, cost decimal.Decimal, reason string) error {
	if cost.IsNegative() {
		return ErrInvalidCost
	}
	if reason == "" {
		reason = "manual cost update"
	}
	var old decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		part, err := tx.GetPartForUpdate(ctx, partID)
		if err != nil {
			return err
		}
		old = part.Cost
		if part.Cost.Equal(cost) {
			return nil
		}
		part.Cost = cost
		if err := tx.UpdatePart(ctx, part); err != nil {
			return err
		}
		return tx.AppendPriceHistory(ctx, PriceChange{
			PartID:    partID,
			OldCost:   old,
			NewCost:   cost,
			Reason:    reason,
			ChangedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PART_COST_UPDATE", partID,
		map[string]any{"cost": old.StringFixed(2)},
		map[string]any{"cost": cost.StringFixed(2), "reason": reason})
	return nil
}

// AdjustStockInput describes a manual stock adjustment.
type AdjustStockInput struct {
	PartID int64
	Delta  int64
	Note   string
}

// AdjustStock applies a manual stock movement. Negative results are rejected.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (Part, error) {
	if input.PartID == 0 {
		return Part{}, ErrPartNotFound
	}
	if input.Delta == 0 {
		return Part{}, ErrInvalidQuantity
	}
	actor := shared.ActorFromContext(ctx)
	now := time.Now().UTC()
	var updated Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		part, err := tx.GetPartForUpdate(ctx, input.PartID)
		if err != nil {
			return err
		}
		if part.Stock+input.Delta < 0 {
			return ErrNegativeStock
		}
		if err := tx.ApplyStockDelta(ctx, input.PartID, input.Delta); err != nil {
			return err
		}
		refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("ADJ:%d:%d", input.PartID, now.UnixNano())))
		if err := tx.InsertLedgerEntry(ctx, LedgerEntry{
			PartID:   input.PartID,
			Delta:    input.Delta,
			RefType:  RefAdjustment,
			RefID:    refID.String(),
			Note:     input.Note,
			Actor:    actor.Name,
			PostedAt: now,
		}); err != nil {
			return err
		}
		updated = part
		updated.Stock = part.Stock + input.Delta
		return nil
	})
	if err != nil {
		return Part{}, err
	}
	s.recordAudit(ctx, "STOCK_ADJUST", input.PartID,
		map[string]any{"stock": updated.Stock - input.Delta},
		map[string]any{"stock": updated.Stock, "note": input.Note})
	return updated, nil
}

// GetPart returns a part by id.
func (s *Service) GetPart(ctx context.Context, id int64) (Part, error) {
	return s.repo.GetPart(ctx, id)
}

// ListParts returns a page of parts, optionally filtered by search term.
func (s *Service) ListParts(ctx context.Context, limit, offset int, search string) ([]Part, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListParts(ctx, limit, offset, search)
}

// StockLedger lists stock movements.
func (s *Service) StockLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.PartID == 0 {
		return nil, ErrPartNotFound
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.StockLedger(ctx, filter)
}

// PriceHistory lists cost changes for a part, newest first.
func (s *Service) PriceHistory(ctx context.Context, partID int64, limit int) ([]PriceChange, error) {
	if partID == 0 {
		return nil, ErrPartNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.PriceHistory(ctx, partID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, oldData, newData map[string]any) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditEntry{
		Actor:    actor.Name,
		Action:   action,
		Entity:   "parts",
		EntityID: fmt.Sprintf("%d", entityID),
		OldData:  oldData,
		NewData:  newData,
		IP:       actor.IP,
	})
}
