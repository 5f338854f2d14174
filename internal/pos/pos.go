// Package pos defines the client boundary to the external point-of-sale
// service that owns the catalog, the inventory ledger, orders and
// invoices.  The service is a collaborator: this package only models
// the calls the core needs and never caches state.  Every mutating call
// takes an idempotency key supplied by the caller; a fresh key must be
// generated per logical attempt so transport retries of the identical
// attempt cannot duplicate effects remotely.
package pos

import (
	"context"
	"fmt"
	"time"
)

// Catalog object types understood by the remote catalog.
const (
	TypeCategory      = "CATEGORY"
	TypeItem          = "ITEM"
	TypeItemVariation = "ITEM_VARIATION"
)

// Inventory states used in adjustment transitions.
const (
	StateNone    = "NONE"
	StateInStock = "IN_STOCK"
	StateSold    = "SOLD"
	StateWaste   = "WASTE"
)

// Money is a fixed-point currency amount in the smallest unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CatalogObject is the wire shape for catalog upserts.  Exactly one of
// the *Data fields is set depending on Type.  On upsert requests the ID
// holds a caller-chosen temporary reference (prefixed with '#'); on
// responses it holds the identifier assigned by the POS.
type CatalogObject struct {
	Type              string             `json:"type"`
	ID                string             `json:"id"`
	CategoryData      *CategoryData      `json:"category_data,omitempty"`
	ItemData          *ItemData          `json:"item_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
}

type CategoryData struct {
	Name string `json:"name"`
}

type ItemData struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	CategoryID  string          `json:"category_id"`
	Variations  []CatalogObject `json:"variations,omitempty"`
}

type ItemVariationData struct {
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	PricingType string `json:"pricing_type"`
	PriceMoney  Money  `json:"price_money"`
}

// InventoryChange describes one adjustment applied to the remote
// ledger: Quantity units move from FromState to ToState.
type InventoryChange struct {
	ObjectID   string
	FromState  string
	ToState    string
	Quantity   int
	OccurredAt time.Time
}

// Count is one entry of a batch inventory count retrieval.
type Count struct {
	ObjectID string
	Quantity int
}

// LineItem is a requested order line referencing a catalog variation.
type LineItem struct {
	CatalogObjectID string
	Quantity        int
}

// OrderLine is a confirmed line from a retrieved order.  The POS may
// split or merge lines, so quantities must be aggregated per object id
// before being trusted.
type OrderLine struct {
	CatalogObjectID string
	Quantity        int
}

// Order is the remote representation of an order.
type Order struct {
	ID         string
	LocationID string
	State      string
	TotalMoney Money
	Lines      []OrderLine
}

// Invoice is the remote representation of an invoice.
type Invoice struct {
	ID        string
	OrderID   string
	Status    string
	PublicURL string
}

// Checkout is a terminal checkout created for an order payment.
type Checkout struct {
	ID     string
	Status string
}

// Client is the full POS surface used by the core.  Implementations
// must be safe for concurrent use.
type Client interface {
	UpsertCatalogObject(ctx context.Context, idempotencyKey string, object CatalogObject) (CatalogObject, error)
	BatchChangeInventory(ctx context.Context, idempotencyKey string, changes []InventoryChange) error
	BatchRetrieveInventoryCounts(ctx context.Context, objectIDs []string) ([]Count, error)
	CreateOrder(ctx context.Context, idempotencyKey, locationID string, lines []LineItem) (Order, error)
	RetrieveOrder(ctx context.Context, orderID string) (Order, error)
	CreateInvoice(ctx context.Context, idempotencyKey, orderID string, dueDate time.Time) (Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (Invoice, error)
	CreateTerminalCheckout(ctx context.Context, idempotencyKey, orderID string, amount Money) (Checkout, error)
}

// Error is a failed POS call.  StatusCode is zero for transport
// failures (connection refused, timeout) which, like 5xx responses,
// are retryable with a fresh idempotency key.  4xx responses are not.
type Error struct {
	StatusCode int
	Op         string
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("pos: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pos: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a fresh attempt.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
