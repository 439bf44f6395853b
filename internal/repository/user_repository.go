package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/storefront/internal/model"
)

const userColumns = "id,first_name,last_name,email,password_hash,role,is_active,created_at,updated_at"

// UserRepo mirrors the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u (whose PasswordHash must already be set) and returns
// the stored record with its generated ID.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	u.Email = model.NormalizeEmail(u.Email)
	now := time.Now().UTC().Truncate(time.Second)
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (first_name, last_name, email, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	u.ID = strconv.FormatInt(id, 10)
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		model.NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return model.User{}, ErrUserNotFound
	}
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", n)
	return scanUser(row)
}

// HasAdmin reports whether at least one admin record exists.
func (r *UserRepo) HasAdmin(ctx context.Context) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE role=? LIMIT 1", model.RoleAdmin).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateRole sets the role of user id and returns the updated record.
func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) (model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return model.User{}, ErrUserNotFound
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE id=?",
		role, time.Now().UTC().Truncate(time.Second), n); err != nil {
		return model.User{}, err
	}
	// RowsAffected is 0 for an unchanged role too, so the read decides
	// whether the id exists.
	return r.GetByID(ctx, id)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u        model.User
		id       uint64
		lastName sql.NullString
	)
	err := row.Scan(&id, &u.FirstName, &lastName, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.ID = strconv.FormatUint(id, 10)
	u.LastName = lastName.String
	u.Role = model.NormalizeRole(u.Role)
	return u, nil
}

// isDuplicateKey detects MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
