package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/order"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
	"github.com/iliyamo/restaurant-waitlist/internal/queue"
	queue_publisher "github.com/iliyamo/restaurant-waitlist/internal/service"
)

// OrderHandler runs the order placement workflow and the follow-up
// lookup, invoice and checkout endpoints.
type OrderHandler struct {
	Workflow *order.Workflow
	POS      pos.Client
}

func NewOrderHandler(w *order.Workflow, client pos.Client) *OrderHandler {
	return &OrderHandler{Workflow: w, POS: client}
}

type orderLineReq struct {
	VariationRef string `json:"variation_ref"`
	Quantity     int    `json:"quantity"`
}
type placeOrderReq struct {
	Lines []orderLineReq `json:"lines"`
}

type desyncPart struct {
	VariationRef string `json:"variation_ref,omitempty"`
	Error        string `json:"error"`
}

// PlaceOrder creates the order at the POS, persists the local row with
// its customer token, reconciles sold stock from the confirmed remote
// quantities and issues an invoice. Inventory desyncs and invoice
// failures are reported in the response without failing the order.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	var req placeOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email, ok := currentUserEmail(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	lines := make([]order.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, order.Line{VariationRef: l.VariationRef, Quantity: l.Quantity})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Workflow.Place(ctx, email, lines)
	if err != nil {
		return writeError(c, err)
	}

	ev := queue.OrderPlacedEvent{
		OrderID:         res.Order.ID,
		ExternalOrderID: res.Order.ExternalOrderID,
		Token:           res.Order.Token,
		UserID:          res.Order.UserID,
		UserEmail:       email,
		PlaceID:         c.Param("placeID"),
		PlacedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := queue_publisher.PublishOrderPlaced(ctx, ev); err != nil {
		c.Logger().Warnf("publish order.placed failed: %v", err)
	}

	body := echo.Map{
		"token":             res.Order.Token,
		"external_order_id": res.Order.ExternalOrderID,
		"state":             res.Confirmed.State,
	}
	if res.Invoice != nil {
		body["invoice"] = echo.Map{"id": res.Invoice.ID, "status": res.Invoice.Status}
	}
	if res.InvoiceErr != nil {
		body["invoice_error"] = res.InvoiceErr.Error()
	}
	if len(res.Desync) > 0 {
		parts := make([]desyncPart, 0, len(res.Desync))
		for _, d := range res.Desync {
			parts = append(parts, desyncPart{VariationRef: d.VariationRef, Error: d.Err.Error()})
		}
		body["inventory_desync"] = parts
	}
	return c.JSON(http.StatusCreated, body)
}

// GetOrder looks an order up by its 6-character token and returns the
// current remote snapshot.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	local, remote, err := h.Workflow.Lookup(ctx, c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}
	lines := make([]echo.Map, 0, len(remote.Lines))
	for _, l := range remote.Lines {
		lines = append(lines, echo.Map{"catalog_object_id": l.CatalogObjectID, "quantity": l.Quantity})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":             local.Token,
		"external_order_id": local.ExternalOrderID,
		"created_at":        local.CreatedAt,
		"state":             remote.State,
		"total_money":       echo.Map{"amount": remote.TotalMoney.Amount, "currency": remote.TotalMoney.Currency},
		"lines":             lines,
	})
}

// GetInvoice fetches an invoice from the POS by its external id.
func (h *OrderHandler) GetInvoice(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	invoice, err := h.POS.GetInvoice(ctx, c.Param("id"))
	if err != nil {
		var posErr *pos.Error
		if errors.As(err, &posErr) && posErr.StatusCode == http.StatusNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "invoice does not exist"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "remote_failure", "message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         invoice.ID,
		"order_id":   invoice.OrderID,
		"status":     invoice.Status,
		"public_url": invoice.PublicURL,
	})
}

type checkoutReq struct {
	Token string `json:"token"`
}

// Checkout starts a terminal checkout for an open order and clears the
// payer's seated flag.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	checkout, err := h.Workflow.Checkout(ctx, req.Token)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"checkout_id": checkout.ID,
		"status":      checkout.Status,
	})
}
