package model

// The menu is a three level tree: a restaurant owns categories, a
// category owns items, an item owns variations.  Each node carries the
// identifier assigned by the external POS catalog (nil until the first
// successful upsert) alongside the internal primary key.  ReferenceID
// is the stable caller-supplied key that correlates a local row across
// repeated upserts even when the POS reassigns the external id.

// Category groups items on a restaurant's menu.
type Category struct {
	ID          uint64  // categories.id
	RestaurantID uint64 // categories.restaurant_id
	Name        string  // categories.name
	ReferenceID string  // categories.reference_id
	ExternalID  *string // categories.external_id (nullable)
}

// Item is a sellable dish under a category.
type Item struct {
	ID          uint64  // items.id
	CategoryID  uint64  // items.category_id
	Name        string  // items.name
	Description *string // items.description (nullable)
	ReferenceID string  // items.reference_id
	ExternalID  *string // items.external_id (nullable)
}

// Variation is a purchasable variant of an item (e.g. "Large").
// PriceCents is a fixed-point currency amount.  Quantity mirrors the
// stock level most recently confirmed by the external inventory ledger
// and is never updated without a confirmed remote adjustment.
type Variation struct {
	ID          uint64  // variations.id
	ItemID      uint64  // variations.item_id
	Name        string  // variations.name
	ReferenceID string  // variations.reference_id
	ExternalID  *string // variations.external_id (nullable)
	PriceCents  int64   // variations.price_cents
	Quantity    int     // variations.quantity (>= 0)
}
