// Package router registers the storefront's HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/handler"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/model"
)

// Deps carries everything the routes need.
type Deps struct {
	Auth      *handler.AuthHandler
	Checkout  *handler.CheckoutHandler
	JWTSecret string
	// RateLimit guards login, registration and payment; nil disables it.
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterStorefront mounts the storefront API under /usuarios, the paths
// the storefront client calls, and mirrors it under /v1.
func RegisterStorefront(e *echo.Echo, d Deps) {
	limit := d.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	auth := middleware.JWTAuth(d.JWTSecret)
	customerOnly := middleware.RequireRole(model.RoleCustomer)

	for _, prefix := range []string{"/usuarios", "/v1/usuarios"} {
		g := e.Group(prefix)
		g.POST("/register", d.Auth.Register, limit)
		g.POST("/login", d.Auth.Login, limit)
		// JWTAuth runs before the limiter so the bucket can key on the user.
		g.POST("/pago", d.Checkout.Pay, auth, customerOnly, limit)
		g.GET("/recibo/:sessionId", d.Checkout.Receipt)
		g.GET("/resultado", d.Checkout.Result)
	}

	v1 := e.Group("/v1", auth)
	v1.GET("/me", d.Auth.Me)

	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.PATCH("/users/:id/role", d.Auth.ChangeRole)
}
