package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/utils"
)

// UserStore is the credential store used by the auth and checkout
// services.  Both repository.UserRepo (MySQL) and
// repository.UserMongoRepo satisfy it.
type UserStore interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	HasAdmin(ctx context.Context) (bool, error)
	UpdateRole(ctx context.Context, id, role string) (model.User, error)
}

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

const minPasswordLen = 6

// AuthConfig is the slice of the process configuration the auth
// service needs.
type AuthConfig struct {
	JWTSecret           string
	AccessTTL           time.Duration
	BcryptCost          int
	AdminEmail          string
	AdminPassword       string
	AllowRoleSelfAssign bool
}

// AuthConfigFrom extracts the auth settings from cfg.
func AuthConfigFrom(cfg config.Config) AuthConfig {
	return AuthConfig{
		JWTSecret:           cfg.JWTSecret,
		AccessTTL:           cfg.AccessTTL(),
		BcryptCost:          cfg.BcryptCost,
		AdminEmail:          cfg.AdminEmail,
		AdminPassword:       cfg.AdminPassword,
		AllowRoleSelfAssign: cfg.AllowRoleSelfAssign,
	}
}

// AuthService registers and authenticates users.
type AuthService struct {
	users UserStore
	cfg   AuthConfig
	log   *slog.Logger
}

func NewAuthService(users UserStore, cfg AuthConfig, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{users: users, cfg: cfg, log: log}
}

// RegisterInput is the data a visitor submits to create an account.
// Role is optional and only honored when self-assignment is enabled.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token   string
	Expires time.Time
	User    model.User
}

// Register validates in, hashes the password and stores a new active
// user.  A duplicate email yields ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := model.NormalizeEmail(in.Email)

	if n := utf8.RuneCountInString(first); n < 2 || n > 50 {
		return model.User{}, fmt.Errorf("%w: first name must be between 2 and 50 characters", ErrValidation)
	}
	if utf8.RuneCountInString(last) > 50 {
		return model.User{}, fmt.Errorf("%w: last name must be at most 50 characters", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return model.User{}, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return model.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	role, err := s.registrationRole(in.Role)
	if err != nil {
		return model.User{}, err
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, model.User{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", slog.String("user_id", u.ID), slog.String("role", u.Role))
	return u, nil
}

// registrationRole decides the role of a new account.  Unknown role
// names are rejected even when they would be ignored.
func (s *AuthService) registrationRole(requested string) (string, error) {
	role := model.NormalizeRole(requested)
	if role == "" {
		return model.RoleCustomer, nil
	}
	if !model.ValidRole(role) {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, requested)
	}
	if !s.cfg.AllowRoleSelfAssign {
		return model.RoleCustomer, nil
	}
	return role, nil
}

// Login checks the credentials and issues a session token carrying the
// user's current role.  An unknown email yields ErrNotFound and a wrong
// password ErrAuthentication.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, fmt.Errorf("%w: invalid password", ErrAuthentication)
	}
	if !u.IsActive {
		return LoginResult{}, fmt.Errorf("%w: account disabled", ErrAuthentication)
	}
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: tok.Token, Expires: tok.Exp, User: u}, nil
}

// SeedDefaultAdmin creates the configured admin account when no admin
// exists yet.  It reports whether an account was created.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context) (bool, error) {
	has, err := s.users.HasAdmin(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	if has {
		return false, nil
	}
	hash, err := utils.HashPassword(s.cfg.AdminPassword, s.cfg.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	u, err := s.users.Create(ctx, model.User{
		FirstName:    "Admin",
		LastName:     "Principal",
		Email:        model.NormalizeEmail(s.cfg.AdminEmail),
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// Another process seeded concurrently, or the address is taken.
			s.log.WarnContext(ctx, "default admin email already registered", slog.String("email", s.cfg.AdminEmail))
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}
	s.log.InfoContext(ctx, "default admin created", slog.String("user_id", u.ID), slog.String("email", u.Email))
	return true, nil
}

// ChangeRole sets the role of an existing user.  Tokens issued before
// the change keep the old role until they expire.
func (s *AuthService) ChangeRole(ctx context.Context, userID, role string) (model.User, error) {
	role = model.NormalizeRole(role)
	if !model.ValidRole(role) {
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	u, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return model.User{}, fmt.Errorf("update role: %w", err)
	}
	s.log.InfoContext(ctx, "user role changed", slog.String("user_id", u.ID), slog.String("role", u.Role))
	return u, nil
}
