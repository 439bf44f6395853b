package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront/internal/cart"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/service"
)

// HeaderIdempotencyKey lets a client mark retries of the same checkout.
const HeaderIdempotencyKey = "Idempotency-Key"

// Checkouter opens payment sessions.
type Checkouter interface {
	CreateCheckout(ctx context.Context, c *cart.Cart, userID, idempotencyKey string) (service.CheckoutResult, error)
}

// Receipts reads confirmations back from the processor.
type Receipts interface {
	GetReceipt(ctx context.Context, sessionID string) (service.Receipt, error)
	ResolveRedirect(ctx context.Context, status, sessionID string) service.RedirectResult
}

// CheckoutHandler serves the payment and confirmation endpoints.
type CheckoutHandler struct {
	Checkout Checkouter
	Receipts Receipts
	Log      *slog.Logger
}

func NewCheckoutHandler(co Checkouter, r Receipts, log *slog.Logger) *CheckoutHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutHandler{Checkout: co, Receipts: r, Log: log}
}

type checkoutReq struct {
	Items []cart.SnapshotItem `json:"items"`
}

// Pay handles POST /usuarios/pago.  The body is the client's cart
// snapshot; it is folded into a cart with the same merge rules the
// client applies before any processor call.
func (h *CheckoutHandler) Pay(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	basket, err := cart.FromSnapshot(req.Items)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": cartMessage(err)})
	}

	res, err := h.Checkout.CreateCheckout(c.Request().Context(), basket, middleware.UserID(c), c.Request().Header.Get(HeaderIdempotencyKey))
	if err != nil {
		return fail(c, h.Log, err, "error")
	}
	return c.JSON(http.StatusOK, echo.Map{"url": res.URL, "session_id": res.SessionID})
}

func cartMessage(err error) string {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "every item needs a quantity of at least 1"
	case errors.Is(err, cart.ErrInvalidPrice):
		return "item prices must not be negative"
	case errors.Is(err, cart.ErrPriceConflict):
		return "the same product appears with different prices"
	case errors.Is(err, cart.ErrInvalidProduct):
		return "every item needs a name or product id"
	default:
		return err.Error()
	}
}

// Receipt handles GET /usuarios/recibo/:sessionId.  Nothing is cached:
// each call re-reads the session from the processor.
func (h *CheckoutHandler) Receipt(c echo.Context) error {
	r, err := h.Receipts.GetReceipt(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return fail(c, h.Log, err, "error")
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, r)
}

// Result handles GET /usuarios/resultado?status=&session_id=, the page the
// processor redirects the buyer back to.
func (h *CheckoutHandler) Result(c echo.Context) error {
	out := h.Receipts.ResolveRedirect(c.Request().Context(), c.QueryParam("status"), c.QueryParam("session_id"))
	body := echo.Map{"outcome": out.Outcome}
	switch out.Outcome {
	case service.OutcomeSuccess:
		body["receipt"] = out.Receipt
	case service.OutcomeFailed:
		status := statusFor(out.Err)
		if status >= http.StatusInternalServerError {
			h.Log.ErrorContext(c.Request().Context(), "receipt after redirect failed", slog.Any("err", out.Err))
		}
		body["error"] = publicMessage(out.Err, status)
	case service.OutcomeCancelled:
		body["message"] = "payment cancelled"
	default:
		body["message"] = "unknown payment state"
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, body)
}
