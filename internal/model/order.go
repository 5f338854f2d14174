package model

import "time"

// Order links a user to an order created at the external POS.  Token is
// a locally generated 6-character identifier handed to the customer for
// later lookups; it is unique across all orders.  A row exists only if
// the remote order creation succeeded.
type Order struct {
	ID              uint64    // orders.id
	UserID          uint64    // orders.user_id
	ExternalOrderID string    // orders.external_order_id
	Token           string    // orders.token (6 chars, unique)
	CreatedAt       time.Time // orders.created_at
}
