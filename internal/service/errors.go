// Package service holds the storefront use cases: authentication,
// checkout and order confirmation.  Every failure a caller can act on
// wraps one of the sentinels below so the HTTP layer can map it with
// errors.Is.
package service

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrAuthentication  = errors.New("authentication failed")
	ErrAuthorization   = errors.New("not authorized")
	ErrNotFound        = errors.New("not found")
	ErrPaymentProvider = errors.New("payment provider error")
	ErrTimeout         = errors.New("timed out")
)
