package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/cart"
	"github.com/iliyamo/storefront/internal/handler"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/service"
	"github.com/iliyamo/storefront/internal/utils"
)

const secret = "router-secret"

type stubAuth struct{}

func (stubAuth) Register(context.Context, service.RegisterInput) (model.User, error) {
	return model.User{ID: "1", Role: model.RoleCustomer}, nil
}

func (stubAuth) Login(context.Context, string, string) (service.LoginResult, error) {
	return service.LoginResult{Token: "tok"}, nil
}

func (stubAuth) ChangeRole(_ context.Context, id, role string) (model.User, error) {
	return model.User{ID: id, Role: role}, nil
}

type stubCheckout struct{ calls int }

func (s *stubCheckout) CreateCheckout(context.Context, *cart.Cart, string, string) (service.CheckoutResult, error) {
	s.calls++
	return service.CheckoutResult{URL: "https://pay.example", SessionID: "cs_1"}, nil
}

type stubReceipts struct{}

func (stubReceipts) GetReceipt(_ context.Context, id string) (service.Receipt, error) {
	return service.Receipt{Total: 1}, nil
}

func (stubReceipts) ResolveRedirect(context.Context, string, string) service.RedirectResult {
	return service.RedirectResult{Outcome: service.OutcomeUnknown}
}

func newServer(co *stubCheckout, limit echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	RegisterRoutes(e)
	RegisterStorefront(e, Deps{
		Auth:      handler.NewAuthHandler(stubAuth{}, nil),
		Checkout:  handler.NewCheckoutHandler(co, stubReceipts{}, nil),
		JWTSecret: secret,
		RateLimit: limit,
	})
	return e
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "7", role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func send(e *echo.Echo, method, path, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const payBody = `{"items":[{"nombre":"Widget","precio":19.99,"cantidad":2}]}`

func TestPago_RequiresCustomer(t *testing.T) {
	for _, prefix := range []string{"/usuarios", "/v1/usuarios"} {
		co := &stubCheckout{}
		e := newServer(co, nil)

		assert.Equal(t, http.StatusUnauthorized, send(e, http.MethodPost, prefix+"/pago", payBody, "").Code)
		assert.Equal(t, http.StatusForbidden, send(e, http.MethodPost, prefix+"/pago", payBody, token(t, model.RoleAdmin)).Code)
		assert.Zero(t, co.calls)

		rec := send(e, http.MethodPost, prefix+"/pago", payBody, token(t, model.RoleCustomer))
		assert.Equal(t, http.StatusOK, rec.Code, prefix)
		assert.Equal(t, 1, co.calls)
	}
}

func TestPublicRoutes(t *testing.T) {
	e := newServer(&stubCheckout{}, nil)

	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusCreated, send(e, http.MethodPost, "/usuarios/register", `{}`, "").Code)
	assert.Equal(t, http.StatusOK, send(e, http.MethodPost, "/usuarios/login", `{}`, "").Code)
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/usuarios/recibo/cs_1", "", "").Code)
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/usuarios/resultado?status=x", "", "").Code)
}

func TestAdminRoutes(t *testing.T) {
	e := newServer(&stubCheckout{}, nil)

	assert.Equal(t, http.StatusUnauthorized, send(e, http.MethodGet, "/v1/me", "", "").Code)
	assert.Equal(t, http.StatusOK, send(e, http.MethodGet, "/v1/me", "", token(t, model.RoleCustomer)).Code)

	path := "/v1/admin/users/5/role"
	assert.Equal(t, http.StatusForbidden, send(e, http.MethodPatch, path, `{"rol":"admin"}`, token(t, model.RoleCustomer)).Code)
	rec := send(e, http.MethodPatch, path, `{"rol":"admin"}`, token(t, model.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"5"`)
}

func TestRateLimitWrapsLimitedRoutesOnly(t *testing.T) {
	var hits int
	limit := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hits++
			return next(c)
		}
	}
	e := newServer(&stubCheckout{}, limit)

	send(e, http.MethodPost, "/usuarios/login", `{}`, "")
	send(e, http.MethodPost, "/usuarios/register", `{}`, "")
	send(e, http.MethodPost, "/usuarios/pago", payBody, token(t, model.RoleCustomer))
	send(e, http.MethodGet, "/usuarios/recibo/cs_1", "", "")
	assert.Equal(t, 3, hits)
}
