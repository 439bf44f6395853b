// Package cart implements the client-held shopping cart.  A Cart never
// touches the server: it lives in the client session and is serialized
// into a checkout request only when the customer pays.  The server
// rebuilds a Cart from that snapshot so the same merge rules apply on
// both sides.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidProduct  = errors.New("product reference is required")
	ErrLineNotFound    = errors.New("product not in cart")
	ErrPriceConflict   = errors.New("same product listed with different prices")
)

// Product is the catalog data a cart line snapshots at add time.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Line is one product-quantity pairing.  UnitPrice is the price seen
// when the product was first added.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered set of lines keyed by product id.  The zero value
// is an empty cart.  It is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart { return &Cart{} }

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddOrIncrement inserts p with qty units, or adds qty to the existing
// line for p.  The existing line keeps its first unit price.
func (c *Cart) AddOrIncrement(p Product, qty int) error {
	if p.ID == "" {
		return ErrInvalidProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if p.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity += qty
		return nil
	}
	c.lines = append(c.lines, Line{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: qty})
	return nil
}

// Increment adds one unit to the line for productID.
func (c *Cart) Increment(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines[i].Quantity++
	return nil
}

// Decrement removes one unit; the line disappears when its last unit goes.
func (c *Cart) Decrement(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if c.lines[i].Quantity <= 1 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity--
	return nil
}

// Remove deletes the line for productID regardless of its quantity.
// Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Total sums the line totals.  It is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Total())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) Clone() *Cart { return &Cart{lines: c.Lines()} }
