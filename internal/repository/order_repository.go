package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/order"
)

// OrderRepo implements the order workflow store over the 'orders'
// table. The token column carries a unique index, so a collision on
// the generated 6-character token surfaces as a duplicate-key error.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

var _ order.Store = (*OrderRepo)(nil)

const orderColumns = "id,user_id,external_order_id,token,created_at"

// UserByEmail fetches the ordering user.
func (r *OrderRepo) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsSeated, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// VariationByReference resolves a requested line to its catalog row.
func (r *OrderRepo) VariationByReference(ctx context.Context, referenceID string) (model.Variation, error) {
	var (
		v   model.Variation
		ext sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, item_id, name, reference_id, external_id, price_cents, quantity FROM variations WHERE reference_id=? LIMIT 1",
		referenceID).Scan(&v.ID, &v.ItemID, &v.Name, &v.ReferenceID, &ext, &v.PriceCents, &v.Quantity)
	if err != nil {
		return model.Variation{}, err
	}
	if ext.Valid {
		e := ext.String
		v.ExternalID = &e
	}
	return v, nil
}

// CreateOrder inserts the local order row. A duplicate-key violation
// on the token index is reported as order.ErrTokenTaken so the caller
// can retry with a fresh token.
func (r *OrderRepo) CreateOrder(ctx context.Context, userID uint64, externalOrderID, token string) (model.Order, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO orders (user_id, external_order_id, token) VALUES (?,?,?)",
		userID, externalOrderID, token)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Order{}, order.ErrTokenTaken
		}
		return model.Order{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Order{}, err
	}
	var o model.Order
	err = r.DB.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id=?",
		uint64(id)).Scan(&o.ID, &o.UserID, &o.ExternalOrderID, &o.Token, &o.CreatedAt)
	return o, err
}

// OrderByToken fetches an order by its customer-facing token.
func (r *OrderRepo) OrderByToken(ctx context.Context, token string) (model.Order, error) {
	var o model.Order
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE token=? LIMIT 1",
		token).Scan(&o.ID, &o.UserID, &o.ExternalOrderID, &o.Token, &o.CreatedAt)
	return o, err
}

// SetUserSeated clears or sets the payer's seating flag after checkout.
func (r *OrderRepo) SetUserSeated(ctx context.Context, userID uint64, seated bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_seated=? WHERE id=?", seated, userID)
	return err
}
