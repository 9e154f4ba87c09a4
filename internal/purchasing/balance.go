package purchasing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SupplierOrdersPort is the read surface the balance calculator needs.
type SupplierOrdersPort interface {
	ListSupplierOrders(ctx context.Context, supplierID int64) ([]PurchaseOrder, error)
}

// BalanceCalculator derives supplier balances from order history. Results are
// cached in redis and concurrent computations for the same supplier are
// collapsed with singleflight.
//
// Open (draft or sent) orders count toward total owed and received orders
// toward total paid. The convention mirrors the historical accounting
// behaviour of the desktop application; actual payments live in billing.
type BalanceCalculator struct {
	repo  SupplierOrdersPort
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewBalanceCalculator constructs a calculator. cache may be nil to disable
// caching.
func NewBalanceCalculator(repo SupplierOrdersPort, cache *redis.Client, ttl time.Duration) *BalanceCalculator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BalanceCalculator{repo: repo, cache: cache, ttl: ttl}
}

func balanceCacheKey(supplierID int64) string {
	return fmt.Sprintf("purchasing:balance:%d", supplierID)
}

// Balance returns the supplier balance, from cache when fresh.
func (c *BalanceCalculator) Balance(ctx context.Context, supplierID int64) (SupplierBalance, error) {
	if supplierID == 0 {
		return SupplierBalance{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if c.cache != nil {
		raw, err := c.cache.Get(ctx, balanceCacheKey(supplierID)).Bytes()
		if err == nil {
			var cached SupplierBalance
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}
	result, err, _ := c.group.Do(balanceCacheKey(supplierID), func() (any, error) {
		return c.compute(ctx, supplierID)
	})
	if err != nil {
		return SupplierBalance{}, err
	}
	balance := result.(SupplierBalance)
	if c.cache != nil {
		if raw, err := json.Marshal(balance); err == nil {
			c.cache.Set(ctx, balanceCacheKey(supplierID), raw, c.ttl)
		}
	}
	return balance, nil
}

// Invalidate drops the cached balance for a supplier.
func (c *BalanceCalculator) Invalidate(ctx context.Context, supplierID int64) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Del(ctx, balanceCacheKey(supplierID))
}

func (c *BalanceCalculator) compute(ctx context.Context, supplierID int64) (SupplierBalance, error) {
	orders, err := c.repo.ListSupplierOrders(ctx, supplierID)
	if err != nil {
		return SupplierBalance{}, err
	}
	return computeBalance(supplierID, orders), nil
}

func computeBalance(supplierID int64, orders []PurchaseOrder) SupplierBalance {
	balance := SupplierBalance{SupplierID: supplierID}
	for _, order := range orders {
		switch order.Status {
		case StatusDraft, StatusSent:
			balance.TotalOwed = balance.TotalOwed.Add(order.TotalAmount)
		case StatusReceived:
			balance.TotalPaid = balance.TotalPaid.Add(order.TotalAmount)
		}
	}
	balance.Balance = balance.TotalOwed.Sub(balance.TotalPaid)
	return balance
}

// SupplierBalance resolves the balance through the calculator when one is
// configured, falling back to a direct computation.
func (s *Service) SupplierBalance(ctx context.Context, supplierID int64) (SupplierBalance, error) {
	if supplierID == 0 {
		return SupplierBalance{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if s.balances != nil {
		return s.balances.Balance(ctx, supplierID)
	}
	orders, err := s.repo.ListSupplierOrders(ctx, supplierID)
	if err != nil {
		return SupplierBalance{}, err
	}
	return computeBalance(supplierID, orders), nil
}
