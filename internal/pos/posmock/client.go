// Package posmock provides a testify mock of the POS client for
// service tests.
package posmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/restaurant-waitlist/internal/pos"
)

// Client is a mock implementation of pos.Client.
type Client struct {
	mock.Mock
}

// NewClient returns a mock client that asserts its expectations when
// the test finishes.
func NewClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *Client {
	m := &Client{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Client) UpsertCatalogObject(ctx context.Context, idempotencyKey string, object pos.CatalogObject) (pos.CatalogObject, error) {
	args := m.Called(ctx, idempotencyKey, object)
	return args.Get(0).(pos.CatalogObject), args.Error(1)
}

func (m *Client) BatchChangeInventory(ctx context.Context, idempotencyKey string, changes []pos.InventoryChange) error {
	args := m.Called(ctx, idempotencyKey, changes)
	return args.Error(0)
}

func (m *Client) BatchRetrieveInventoryCounts(ctx context.Context, objectIDs []string) ([]pos.Count, error) {
	args := m.Called(ctx, objectIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pos.Count), args.Error(1)
}

func (m *Client) CreateOrder(ctx context.Context, idempotencyKey, locationID string, lines []pos.LineItem) (pos.Order, error) {
	args := m.Called(ctx, idempotencyKey, locationID, lines)
	return args.Get(0).(pos.Order), args.Error(1)
}

func (m *Client) RetrieveOrder(ctx context.Context, orderID string) (pos.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(pos.Order), args.Error(1)
}

func (m *Client) CreateInvoice(ctx context.Context, idempotencyKey, orderID string, dueDate time.Time) (pos.Invoice, error) {
	args := m.Called(ctx, idempotencyKey, orderID, dueDate)
	return args.Get(0).(pos.Invoice), args.Error(1)
}

func (m *Client) GetInvoice(ctx context.Context, invoiceID string) (pos.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(pos.Invoice), args.Error(1)
}

func (m *Client) CreateTerminalCheckout(ctx context.Context, idempotencyKey, orderID string, amount pos.Money) (pos.Checkout, error) {
	args := m.Called(ctx, idempotencyKey, orderID, amount)
	return args.Get(0).(pos.Checkout), args.Error(1)
}

var _ pos.Client = (*Client)(nil)
