// Package repository implements the credential store.  Two drivers
// are provided: UserRepo on MySQL (database/sql) and UserMongoRepo on
// MongoDB.  Both enforce email uniqueness through a unique index and
// report violations as ErrEmailExists, so callers never need their
// own locking around registration.
package repository

import "errors"

// ErrEmailExists is returned by Create when another record already
// uses the (normalized) email.  Handlers translate this into 409.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned by lookups that match no record.
var ErrUserNotFound = errors.New("user not found")
