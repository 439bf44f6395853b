package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/service"
	"github.com/iliyamo/storefront/internal/utils"
)

// storeTimeout bounds each credential store round trip made by a request.
const storeTimeout = 5 * time.Second

// Authenticator is the part of service.AuthService the handlers use.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (model.User, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	ChangeRole(ctx context.Context, userID, role string) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth Authenticator
	Log  *slog.Logger
}

func NewAuthHandler(a Authenticator, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Auth: a, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Rol      string `json:"rol"` // optional; only honored when self-assignment is enabled
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type roleReq struct {
	Rol string `json:"rol"`
}

// userPart is the public view of a user; it never carries the hash.
type userPart struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido,omitempty"`
	Email    string `json:"email"`
	Rol      string `json:"rol"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Nombre: u.FirstName, Apellido: u.LastName, Email: u.Email, Rol: u.Role}
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    userPart  `json:"user"`
}

// Register handles POST /usuarios/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		FirstName: req.Nombre,
		LastName:  req.Apellido,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Rol,
	})
	if err != nil {
		return fail(c, h.Log, err, "message")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered",
		"user":    toUserPart(u),
	})
}

// Login handles POST /usuarios/login.  An unknown email answers 404 and a
// wrong password 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, h.Log, err, "message")
	}
	return c.JSON(http.StatusOK, loginResp{Token: res.Token, Expires: res.Expires, User: toUserPart(res.User)})
}

// Me returns the identity carried by the caller's token.
func (h *AuthHandler) Me(c echo.Context) error {
	out := echo.Map{
		"user_id": middleware.UserID(c),
		"role":    middleware.Role(c),
	}
	if claims, ok := c.Get(middleware.ContextClaims).(*utils.Claims); ok && claims.ExpiresAt != nil {
		out["expires"] = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, out)
}

// ChangeRole handles PATCH /v1/admin/users/:id/role.  The route is
// guarded by RequireRole(admin); the new role applies to tokens issued
// afterwards.
func (h *AuthHandler) ChangeRole(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Auth.ChangeRole(ctx, c.Param("id"), req.Rol)
	if err != nil {
		return fail(c, h.Log, err, "message")
	}
	h.Log.InfoContext(ctx, "role changed by admin",
		slog.String("admin_id", middleware.UserID(c)),
		slog.String("user_id", u.ID),
		slog.String("role", u.Role))
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}
