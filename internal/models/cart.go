package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	CartItemID  string          `json:"cart_item_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	MaxAllowed  int             `json:"max_allowed"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSnapshot is a point-in-time, read-only copy of the shopper's cart.
// The total is always the sum of unit price times quantity over its items.
type CartSnapshot struct {
	items      []CartItem
	total      decimal.Decimal
	capturedAt time.Time
}

func NewCartSnapshot(items []CartItem, capturedAt time.Time) *CartSnapshot {
	copied := make([]CartItem, len(items))
	copy(copied, items)

	total := decimal.Zero
	for _, item := range copied {
		total = total.Add(item.Subtotal())
	}

	return &CartSnapshot{
		items:      copied,
		total:      total,
		capturedAt: capturedAt,
	}
}

func EmptyCartSnapshot() *CartSnapshot {
	return NewCartSnapshot(nil, time.Now())
}

// Items returns a copy; mutating it does not affect the snapshot.
func (c *CartSnapshot) Items() []CartItem {
	items := make([]CartItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c *CartSnapshot) TotalPrice() decimal.Decimal {
	return c.total
}

func (c *CartSnapshot) ItemsCount() int {
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

func (c *CartSnapshot) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *CartSnapshot) CapturedAt() time.Time {
	return c.capturedAt
}
