package model

import (
	"strings"
	"time"
)

// Role names stored on user records and embedded in session tokens.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ValidRole reports whether r is one of the known role names.
func ValidRole(r string) bool {
	return r == RoleCustomer || r == RoleAdmin
}

// NormalizeRole lower-cases and trims a role supplied by a client.
// The legacy Spanish name "cliente" maps to RoleCustomer.
func NormalizeRole(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	if r == "cliente" {
		return RoleCustomer
	}
	return r
}

// NormalizeEmail trims and lower-cases an email address.  Every store
// lookup and insert goes through it so uniqueness is case-insensitive.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// User represents a registered identity as stored in the credential
// store (the `users` table or the `usuarios` collection).  The struct
// carries no JSON tags: handlers build their own response views so
// the password hash never leaves the server.
//
// Fields:
//
//	ID           – store identifier (decimal auto-increment id or ObjectID hex).
//	FirstName    – given name (nombre).
//	LastName     – family name (apellido), optional.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
//	Role         – RoleCustomer or RoleAdmin.
//	IsActive     – whether the account may log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
