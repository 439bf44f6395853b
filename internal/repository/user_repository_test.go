package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/model"
)

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

var selectByEmail = regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE email=? LIMIT 1")

func userRows(id int64, email, role string) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}).
		AddRow(id, "Ana", nil, email, "$2a$hash", role, true, now, now)
}

func TestUserRepo_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ana", "Diaz", "ana@example.com", "$2a$hash", model.RoleCustomer, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	u, err := repo.Create(context.Background(), model.User{
		FirstName: "Ana", LastName: "Diaz", Email: "  ANA@example.com ",
		PasswordHash: "$2a$hash", Role: model.RoleCustomer, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "7", u.ID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ana@example.com' for key 'uq_users_email'"})

	_, err := repo.Create(context.Background(), model.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_Create_OtherError(t *testing.T) {
	repo, mock := newMockRepo(t)

	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(boom)

	_, err := repo.Create(context.Background(), model.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectByEmail).WithArgs("ana@example.com").
		WillReturnRows(userRows(3, "ana@example.com", model.RoleAdmin))

	u, err := repo.GetByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "3", u.ID)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.Empty(t, u.LastName)
	assert.True(t, u.IsActive)
}

func TestUserRepo_GetByEmail_LegacyCustomerRole(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectByEmail).WithArgs("ana@example.com").
		WillReturnRows(userRows(4, "ana@example.com", "cliente"))

	u, err := repo.GetByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, u.Role)
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectByEmail).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_GetByID_InvalidID(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_HasAdmin(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		err  error
		want bool
	}{
		{name: "present", rows: sqlmock.NewRows([]string{"1"}).AddRow(1), want: true},
		{name: "absent", err: sql.ErrNoRows, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			q := mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE role=? LIMIT 1")).WithArgs(model.RoleAdmin)
			if tc.err != nil {
				q.WillReturnError(tc.err)
			} else {
				q.WillReturnRows(tc.rows)
			}
			got, err := repo.HasAdmin(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUserRepo_UpdateRole(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role=?, updated_at=? WHERE id=?")).
		WithArgs(model.RoleAdmin, sqlmock.AnyArg(), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id=? LIMIT 1")).
		WithArgs(uint64(3)).
		WillReturnRows(userRows(3, "ana@example.com", model.RoleAdmin))

	u, err := repo.UpdateRole(context.Background(), "3", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
