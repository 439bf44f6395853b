package cart

import (
	"errors"

	"github.com/iliyamo/storefront/internal/model"
)

// ErrNotCustomer is returned for cart mutations attempted by a guest or
// an admin.  Only customers may hold a cart.
var ErrNotCustomer = errors.New("log in as a customer to use the cart")

// Session is the client-side holder of the active role and its cart.
type Session struct {
	role string
	cart Cart
}

// NewSession returns a guest session with an empty cart.
func NewSession() *Session { return &Session{} }

// Login records the role of the identity that just signed in.
func (s *Session) Login(role string) { s.role = role }

// Logout forgets the identity and clears the cart.
func (s *Session) Logout() {
	s.role = ""
	s.cart.Clear()
}

func (s *Session) Role() string { return s.role }

func (s *Session) canMutate() bool { return s.role == model.RoleCustomer }

func (s *Session) Add(p Product, qty int) error {
	if !s.canMutate() {
		return ErrNotCustomer
	}
	return s.cart.AddOrIncrement(p, qty)
}

func (s *Session) Increment(productID string) error {
	if !s.canMutate() {
		return ErrNotCustomer
	}
	return s.cart.Increment(productID)
}

func (s *Session) Decrement(productID string) error {
	if !s.canMutate() {
		return ErrNotCustomer
	}
	return s.cart.Decrement(productID)
}

func (s *Session) Remove(productID string) error {
	if !s.canMutate() {
		return ErrNotCustomer
	}
	s.cart.Remove(productID)
	return nil
}

// Cart returns a copy of the current cart.
func (s *Session) Cart() *Cart { return s.cart.Clone() }

// CheckedOut clears the cart after it was handed to the payment processor.
func (s *Session) CheckedOut() { s.cart.Clear() }
