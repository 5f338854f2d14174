package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-waitlist/internal/catalog"
	"github.com/iliyamo/restaurant-waitlist/internal/inventory"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
)

// MenuRepo persists the local mirror of the POS catalog: categories,
// items and variations keyed by their stable reference ids. Upserts
// run in one transaction each so external ids are recorded fully or
// not at all.
type MenuRepo struct{ DB *sql.DB }

func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{DB: db} }

var (
	_ catalog.Store   = (*MenuRepo)(nil)
	_ inventory.Store = (*MenuRepo)(nil)
)

// UpsertCategory inserts or refreshes a category row keyed by
// reference_id and returns the stored row.
func (r *MenuRepo) UpsertCategory(ctx context.Context, restaurantID uint64, name, referenceID, externalID string) (model.Category, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Category{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO categories (restaurant_id, name, reference_id, external_id)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE name=VALUES(name), external_id=VALUES(external_id)`,
		restaurantID, name, referenceID, externalID)
	if err != nil {
		return model.Category{}, err
	}

	var cat model.Category
	var ext sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT id, restaurant_id, name, reference_id, external_id FROM categories WHERE reference_id=? LIMIT 1",
		referenceID).Scan(&cat.ID, &cat.RestaurantID, &cat.Name, &cat.ReferenceID, &ext)
	if err != nil {
		return model.Category{}, err
	}
	if ext.Valid {
		e := ext.String
		cat.ExternalID = &e
	}
	if err := tx.Commit(); err != nil {
		return model.Category{}, err
	}
	return cat, nil
}

// UpsertItem inserts or refreshes an item row and its variation rows,
// all keyed by reference_id, within one transaction.
func (r *MenuRepo) UpsertItem(ctx context.Context, up catalog.ItemUpsert) (model.Item, []model.Variation, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Item{}, nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (category_id, name, description, reference_id, external_id)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE name=VALUES(name), description=VALUES(description), external_id=VALUES(external_id)`,
		up.CategoryID, up.Name, up.Description, up.ReferenceID, up.ExternalID)
	if err != nil {
		return model.Item{}, nil, err
	}

	var item model.Item
	var desc, ext sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT id, category_id, name, description, reference_id, external_id FROM items WHERE reference_id=? LIMIT 1",
		up.ReferenceID).Scan(&item.ID, &item.CategoryID, &item.Name, &desc, &item.ReferenceID, &ext)
	if err != nil {
		return model.Item{}, nil, err
	}
	if desc.Valid {
		d := desc.String
		item.Description = &d
	}
	if ext.Valid {
		e := ext.String
		item.ExternalID = &e
	}

	variations := make([]model.Variation, 0, len(up.Variations))
	for _, v := range up.Variations {
		// New variations start at the caller's seed quantity; repeated
		// upserts never touch the stock mirror.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variations (item_id, name, reference_id, external_id, price_cents, quantity)
			 VALUES (?,?,?,?,?,?)
			 ON DUPLICATE KEY UPDATE name=VALUES(name), external_id=VALUES(external_id), price_cents=VALUES(price_cents)`,
			item.ID, v.Name, v.ReferenceID, v.ExternalID, v.PriceCents, v.Quantity)
		if err != nil {
			return model.Item{}, nil, err
		}
		var stored model.Variation
		var vext sql.NullString
		err = tx.QueryRowContext(ctx,
			"SELECT id, item_id, name, reference_id, external_id, price_cents, quantity FROM variations WHERE reference_id=? LIMIT 1",
			v.ReferenceID).Scan(&stored.ID, &stored.ItemID, &stored.Name, &stored.ReferenceID, &vext, &stored.PriceCents, &stored.Quantity)
		if err != nil {
			return model.Item{}, nil, err
		}
		if vext.Valid {
			e := vext.String
			stored.ExternalID = &e
		}
		variations = append(variations, stored)
	}

	if err := tx.Commit(); err != nil {
		return model.Item{}, nil, err
	}
	return item, variations, nil
}

// Adjust opens a transaction, locks the variation row for update and
// runs fn with a session bound to that lock. Reconciliations of the
// same variation serialize on the row lock; the transaction commits
// only when fn returns nil.
func (r *MenuRepo) Adjust(ctx context.Context, referenceID string, fn func(inventory.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		v   model.Variation
		ext sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, item_id, name, reference_id, external_id, price_cents, quantity FROM variations WHERE reference_id=? FOR UPDATE",
		referenceID).Scan(&v.ID, &v.ItemID, &v.Name, &v.ReferenceID, &ext, &v.PriceCents, &v.Quantity)
	if err != nil {
		return err
	}
	if ext.Valid {
		e := ext.String
		v.ExternalID = &e
	}

	if err := fn(&variationTx{tx: tx, v: v}); err != nil {
		return err
	}
	return tx.Commit()
}

// variationTx is the variation-scoped session handed to Adjust
// callbacks.
type variationTx struct {
	tx *sql.Tx
	v  model.Variation
}

func (s *variationTx) Variation() model.Variation { return s.v }

// SetQuantity writes the stock mirror under the row lock. Called only
// after the external ledger confirmed the matching adjustment.
func (s *variationTx) SetQuantity(ctx context.Context, quantity int) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE variations SET quantity=? WHERE id=?", quantity, s.v.ID)
	return err
}

// MenuVariation is one purchasable variant in a menu tree response.
type MenuVariation struct {
	Name        string `json:"name"`
	ReferenceID string `json:"reference_id"`
	PriceCents  int64  `json:"price_cents"`
	Quantity    int    `json:"quantity"`
}

// MenuItem is one dish with its variations in a menu tree response.
type MenuItem struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	ReferenceID string          `json:"reference_id"`
	Variations  []MenuVariation `json:"variations"`
}

// MenuCategory is one category with its items in a menu tree response.
type MenuCategory struct {
	Name        string     `json:"name"`
	ReferenceID string     `json:"reference_id"`
	Items       []MenuItem `json:"items"`
}

// MenuByRestaurant loads the full category > item > variation tree for
// a restaurant, ordered by name at every level.
func (r *MenuRepo) MenuByRestaurant(ctx context.Context, restaurantID uint64) ([]MenuCategory, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.name, c.reference_id,
		        i.id, i.name, i.description, i.reference_id,
		        v.name, v.reference_id, v.price_cents, v.quantity
		 FROM categories c
		 LEFT JOIN items i ON i.category_id = c.id
		 LEFT JOIN variations v ON v.item_id = i.id
		 WHERE c.restaurant_id=?
		 ORDER BY c.name, c.id, i.name, i.id, v.price_cents, v.id`,
		restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		menu       []MenuCategory
		lastCatID  uint64
		lastItemID uint64
	)
	for rows.Next() {
		var (
			catID    uint64
			cat      MenuCategory
			itemID   sql.NullInt64
			itemName sql.NullString
			desc     sql.NullString
			itemRef  sql.NullString
			varName  sql.NullString
			varRef   sql.NullString
			price    sql.NullInt64
			qty      sql.NullInt64
		)
		err := rows.Scan(&catID, &cat.Name, &cat.ReferenceID,
			&itemID, &itemName, &desc, &itemRef,
			&varName, &varRef, &price, &qty)
		if err != nil {
			return nil, err
		}
		if catID != lastCatID {
			menu = append(menu, MenuCategory{Name: cat.Name, ReferenceID: cat.ReferenceID})
			lastCatID = catID
			lastItemID = 0
		}
		if !itemID.Valid {
			continue
		}
		current := &menu[len(menu)-1]
		if uint64(itemID.Int64) != lastItemID {
			item := MenuItem{Name: itemName.String, ReferenceID: itemRef.String}
			if desc.Valid {
				d := desc.String
				item.Description = &d
			}
			current.Items = append(current.Items, item)
			lastItemID = uint64(itemID.Int64)
		}
		if !varName.Valid {
			continue
		}
		it := &current.Items[len(current.Items)-1]
		it.Variations = append(it.Variations, MenuVariation{
			Name:        varName.String,
			ReferenceID: varRef.String,
			PriceCents:  price.Int64,
			Quantity:    int(qty.Int64),
		})
	}
	return menu, rows.Err()
}
