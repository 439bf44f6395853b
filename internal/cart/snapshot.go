package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SnapshotItem is the wire form of a cart line sent to checkout and
// stored in the payment session metadata.  Field names follow the
// storefront client's JSON.
type SnapshotItem struct {
	ProductID string          `json:"productoId,omitempty"`
	Name      string          `json:"nombre"`
	Price     decimal.Decimal `json:"precio"`
	Quantity  int             `json:"cantidad"`
}

// Snapshot returns the cart as wire items.
func (c *Cart) Snapshot() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, SnapshotItem{ProductID: l.ProductID, Name: l.Name, Price: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}

// FromSnapshot rebuilds a cart from wire items, merging repeated
// product references.  Items without a product id are keyed by name,
// which is what older clients send.  A repeated reference must carry the
// same price, otherwise the merged cart would bill a different total
// than the client shows; that case is ErrPriceConflict.
func FromSnapshot(items []SnapshotItem) (*Cart, error) {
	c := New()
	for _, it := range items {
		id := it.ProductID
		if id == "" {
			id = it.Name
		}
		if l, ok := c.Line(id); ok && !l.UnitPrice.Equal(it.Price) {
			return nil, fmt.Errorf("%w: %s", ErrPriceConflict, it.Name)
		}
		if err := c.AddOrIncrement(Product{ID: id, Name: it.Name, Price: it.Price}, it.Quantity); err != nil {
			return nil, err
		}
	}
	return c, nil
}
