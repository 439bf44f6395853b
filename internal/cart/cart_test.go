package cart

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/model"
)

func widget() Product {
	return Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("19.99")}
}

func TestAddOrIncrement_MergesQuantities(t *testing.T) {
	c := New()
	require.NoError(t, c.AddOrIncrement(widget(), 2))
	require.NoError(t, c.AddOrIncrement(widget(), 3))

	require.Equal(t, 1, c.Len())
	line, ok := c.Line("p1")
	require.True(t, ok)
	assert.Equal(t, 5, line.Quantity)
	assert.True(t, line.Total().Equal(decimal.RequireFromString("99.95")), line.Total().String())

	c.Remove("p1")
	assert.True(t, c.IsEmpty())
}

func TestAddOrIncrement_KeepsFirstUnitPrice(t *testing.T) {
	c := New()
	require.NoError(t, c.AddOrIncrement(widget(), 1))
	repriced := widget()
	repriced.Price = decimal.RequireFromString("25")
	require.NoError(t, c.AddOrIncrement(repriced, 1))

	line, _ := c.Line("p1")
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 2, line.Quantity)
}

func TestAddOrIncrement_Rejects(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.AddOrIncrement(widget(), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddOrIncrement(Product{Name: "x", Price: decimal.NewFromInt(1)}, 1), ErrInvalidProduct)
	assert.ErrorIs(t, c.AddOrIncrement(Product{ID: "n", Price: decimal.NewFromInt(-1)}, 1), ErrInvalidPrice)
	assert.True(t, c.IsEmpty())
}

func TestIncrementDecrement(t *testing.T) {
	c := New()
	require.NoError(t, c.AddOrIncrement(widget(), 1))

	require.NoError(t, c.Increment("p1"))
	line, _ := c.Line("p1")
	assert.Equal(t, 2, line.Quantity)

	require.NoError(t, c.Decrement("p1"))
	require.NoError(t, c.Decrement("p1"))
	assert.True(t, c.IsEmpty(), "decrementing the last unit removes the line")

	assert.ErrorIs(t, c.Increment("p1"), ErrLineNotFound)
	assert.ErrorIs(t, c.Decrement("p1"), ErrLineNotFound)
}

func TestTotal_PreservesOrderAndSums(t *testing.T) {
	c := New()
	require.NoError(t, c.AddOrIncrement(widget(), 2))
	require.NoError(t, c.AddOrIncrement(Product{ID: "p2", Name: "Gadget", Price: decimal.RequireFromString("0.10")}, 3))

	assert.True(t, c.Total().Equal(decimal.RequireFromString("40.28")), c.Total().String())
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, "p2", lines[1].ProductID)

	// Lines is a copy.
	lines[0].Quantity = 100
	line, _ := c.Line("p1")
	assert.Equal(t, 2, line.Quantity)

	c.Remove("missing")
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.True(t, c.Total().IsZero())
}

func TestFromSnapshot_MergesAndRoundTrips(t *testing.T) {
	body := `[{"nombre":"Widget","precio":19.99,"cantidad":2,"productoId":"p1"},
	          {"nombre":"Widget","precio":19.99,"cantidad":1,"productoId":"p1"},
	          {"nombre":"Gift card","precio":"5","cantidad":1}]`
	var items []SnapshotItem
	require.NoError(t, json.Unmarshal([]byte(body), &items))

	c, err := FromSnapshot(items)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	line, ok := c.Line("p1")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	_, ok = c.Line("Gift card")
	assert.True(t, ok, "items without id are keyed by name")

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "p1", snap[0].ProductID)
	assert.Equal(t, 3, snap[0].Quantity)
}

func TestFromSnapshot_InvalidQuantity(t *testing.T) {
	_, err := FromSnapshot([]SnapshotItem{{Name: "x", Price: decimal.NewFromInt(1), Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestFromSnapshot_RejectsConflictingPrices(t *testing.T) {
	tests := []struct {
		name  string
		items []SnapshotItem
	}{
		{
			name: "keyed by name",
			items: []SnapshotItem{
				{Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 1},
				{Name: "Widget", Price: decimal.RequireFromString("20.00"), Quantity: 1},
			},
		},
		{
			name: "keyed by id",
			items: []SnapshotItem{
				{ProductID: "p1", Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 1},
				{ProductID: "p1", Name: "Widget v2", Price: decimal.RequireFromString("9.99"), Quantity: 2},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := FromSnapshot(tc.items)
			assert.ErrorIs(t, err, ErrPriceConflict)
			assert.Nil(t, c)
		})
	}
}

func TestFromSnapshot_EqualPricesInAnyScaleMerge(t *testing.T) {
	c, err := FromSnapshot([]SnapshotItem{
		{Name: "Widget", Price: decimal.RequireFromString("10"), Quantity: 1},
		{Name: "Widget", Price: decimal.RequireFromString("10.00"), Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "30", c.Total().String())
}

func TestSession_GuardsMutations(t *testing.T) {
	tests := []struct {
		name string
		role string
		ok   bool
	}{
		{name: "guest", role: "", ok: false},
		{name: "admin", role: model.RoleAdmin, ok: false},
		{name: "customer", role: model.RoleCustomer, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession()
			s.Login(tc.role)
			err := s.Add(widget(), 1)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrNotCustomer)
				assert.ErrorIs(t, s.Increment("p1"), ErrNotCustomer)
				assert.ErrorIs(t, s.Decrement("p1"), ErrNotCustomer)
				assert.ErrorIs(t, s.Remove("p1"), ErrNotCustomer)
				assert.True(t, s.Cart().IsEmpty())
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.Increment("p1"))
			assert.Equal(t, 1, s.Cart().Len())
		})
	}
}

func TestSession_LogoutAndCheckoutClear(t *testing.T) {
	s := NewSession()
	s.Login(model.RoleCustomer)
	require.NoError(t, s.Add(widget(), 2))

	s.CheckedOut()
	assert.True(t, s.Cart().IsEmpty())

	require.NoError(t, s.Add(widget(), 1))
	s.Logout()
	assert.True(t, s.Cart().IsEmpty())
	assert.Empty(t, s.Role())
	assert.ErrorIs(t, s.Add(widget(), 1), ErrNotCustomer)
}
