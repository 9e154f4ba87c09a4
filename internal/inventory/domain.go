package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceType tags the origin of a stock ledger entry.
type ReferenceType string

const (
	// RefPurchaseOrder marks stock received against a purchase order.
	RefPurchaseOrder ReferenceType = "purchase_order"
	// RefAdjustment marks a manual stock adjustment.
	RefAdjustment ReferenceType = "adjustment"
)

// Part is an inventory part with its current recorded cost and stock level.
type Part struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Cost      decimal.Decimal `json:"cost"`
	Stock     int64           `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry records a single stock movement for a part.
type LedgerEntry struct {
	ID       int64         `json:"id"`
	PartID   int64         `json:"part_id"`
	Delta    int64         `json:"delta"`
	RefType  ReferenceType `json:"ref_type"`
	RefID    string        `json:"ref_id"`
	Note     string        `json:"note"`
	Actor    string        `json:"actor"`
	PostedAt time.Time     `json:"posted_at"`
}

// PriceChange records an old/new cost pair for a part with a reason.
type PriceChange struct {
	ID        int64           `json:"id"`
	PartID    int64           `json:"part_id"`
	OldCost   decimal.Decimal `json:"old_cost"`
	NewCost   decimal.Decimal `json:"new_cost"`
	Reason    string          `json:"reason"`
	ChangedAt time.Time       `json:"changed_at"`
}

// LedgerFilter narrows stock ledger queries.
type LedgerFilter struct {
	PartID  int64
	RefType ReferenceType
	From    time.Time
	To      time.Time
	Limit   int
}

var (
	// ErrPartNotFound indicates a missing part.
	ErrPartNotFound = errors.New("inventory: part not found")
	// ErrNegativeStock triggered when a movement would drive stock below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero delta.
	ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")
	// ErrInvalidCost indicates a negative cost value.
	ErrInvalidCost = errors.New("inventory: cost must be >= 0")
)
