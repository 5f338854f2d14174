// Package catalog translates local menu entities into external POS
// catalog upserts and records the identifiers the POS assigns.  Each
// upsert sends a fresh idempotency token, then persists the returned
// external ids in one local transaction keyed by the entity's stable
// reference, so repeated upserts of the same logical object converge on
// a single local row instead of duplicating catalog objects remotely.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
)

// VariationSpec describes one purchasable variant of an item being
// upserted.  Quantity seeds the stock level for newly created
// variations.
type VariationSpec struct {
	Name       string
	PriceCents int64
	Quantity   int
}

// ItemSpec describes an item and its variations being upserted under a
// category.
type ItemSpec struct {
	Name        string
	Description string
	Variations  []VariationSpec
}

// VariationUpsert carries the resolved external id for one variation of
// an item upsert.
type VariationUpsert struct {
	Name        string
	ReferenceID string
	ExternalID  string
	PriceCents  int64
	Quantity    int
}

// ItemUpsert is the local persistence request produced by a successful
// remote item upsert.
type ItemUpsert struct {
	CategoryID  uint64
	Name        string
	Description string
	ReferenceID string
	ExternalID  string
	Variations  []VariationUpsert
}

// Store persists catalog rows.  Both methods run in one local
// transaction each: an upsert either fully records the external ids or
// leaves the local mirror untouched.
type Store interface {
	UpsertCategory(ctx context.Context, restaurantID uint64, name, referenceID, externalID string) (model.Category, error)
	UpsertItem(ctx context.Context, up ItemUpsert) (model.Item, []model.Variation, error)
}

// Mapper performs catalog upserts against the POS and mirrors the
// results locally.
type Mapper struct {
	store Store
	pos   pos.Client
}

// NewMapper builds a Mapper over the given store and POS client.
func NewMapper(store Store, client pos.Client) *Mapper {
	return &Mapper{store: store, pos: client}
}

// Reference derives the deterministic reference id for a logical
// catalog object: name parts with spaces collapsed to underscores,
// joined by double underscores and suffixed with the restaurant's place
// id.  The '#' prefix marks it as a client-assigned id on upsert
// requests.  The derivation is collision-free within a restaurant so
// repeated upserts of the same object converge remotely.
func Reference(placeID string, nameParts ...string) string {
	cleaned := make([]string, 0, len(nameParts))
	for _, p := range nameParts {
		cleaned = append(cleaned, strings.ReplaceAll(p, " ", "_"))
	}
	return "#" + strings.Join(cleaned, "__") + "__" + placeID
}

// UpsertCategory creates or updates a category remotely and mirrors the
// assigned external id into the local row matching the derived
// reference.
func (m *Mapper) UpsertCategory(ctx context.Context, restaurant model.Restaurant, name string) (model.Category, error) {
	if strings.TrimSpace(name) == "" {
		return model.Category{}, apperr.New(apperr.InvalidInput, "category name is required")
	}
	ref := Reference(restaurant.PlaceID, name)
	object := pos.CatalogObject{
		Type:         pos.TypeCategory,
		ID:           ref,
		CategoryData: &pos.CategoryData{Name: name},
	}
	remote, err := m.pos.UpsertCatalogObject(ctx, uuid.NewString(), object)
	if err != nil {
		return model.Category{}, remoteErr(err, "upsert category %q", name)
	}
	category, err := m.store.UpsertCategory(ctx, restaurant.ID, name, ref, remote.ID)
	if err != nil {
		return model.Category{}, apperr.Wrap(apperr.Inconsistency, err,
			"category %q upserted remotely (external id %s) but local persistence failed", name, remote.ID)
	}
	return category, nil
}

// UpsertItem creates or updates an item and its variations remotely
// under the given external category id, then mirrors the assigned ids
// locally in one transaction.  Returned variations are ordered as in
// the spec.
func (m *Mapper) UpsertItem(ctx context.Context, restaurant model.Restaurant, category model.Category, spec ItemSpec) (model.Item, []model.Variation, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return model.Item{}, nil, apperr.New(apperr.InvalidInput, "item name is required")
	}
	if category.ExternalID == nil {
		return model.Item{}, nil, apperr.New(apperr.NotFound, "category %q has no external catalog id", category.Name)
	}
	itemRef := Reference(restaurant.PlaceID, spec.Name)

	variations := make([]pos.CatalogObject, 0, len(spec.Variations))
	for _, v := range spec.Variations {
		variations = append(variations, pos.CatalogObject{
			Type: pos.TypeItemVariation,
			ID:   Reference(restaurant.PlaceID, spec.Name, v.Name),
			ItemVariationData: &pos.ItemVariationData{
				ItemID:      itemRef,
				Name:        v.Name,
				PricingType: "FIXED_PRICING",
				PriceMoney:  pos.Money{Amount: v.PriceCents, Currency: "USD"},
			},
		})
	}
	object := pos.CatalogObject{
		Type: pos.TypeItem,
		ID:   itemRef,
		ItemData: &pos.ItemData{
			Name:        spec.Name,
			Description: spec.Description,
			CategoryID:  *category.ExternalID,
			Variations:  variations,
		},
	}
	remote, err := m.pos.UpsertCatalogObject(ctx, uuid.NewString(), object)
	if err != nil {
		return model.Item{}, nil, remoteErr(err, "upsert item %q", spec.Name)
	}
	if remote.ItemData == nil || len(remote.ItemData.Variations) != len(spec.Variations) {
		return model.Item{}, nil, apperr.New(apperr.Inconsistency,
			"item %q upserted remotely (external id %s) but response carried %d of %d variations",
			spec.Name, remote.ID, len(remoteVariations(remote)), len(spec.Variations))
	}

	up := ItemUpsert{
		CategoryID:  category.ID,
		Name:        spec.Name,
		Description: spec.Description,
		ReferenceID: itemRef,
		ExternalID:  remote.ID,
	}
	for i, v := range spec.Variations {
		up.Variations = append(up.Variations, VariationUpsert{
			Name:        v.Name,
			ReferenceID: Reference(restaurant.PlaceID, spec.Name, v.Name),
			ExternalID:  remote.ItemData.Variations[i].ID,
			PriceCents:  v.PriceCents,
			Quantity:    v.Quantity,
		})
	}
	item, vars, err := m.store.UpsertItem(ctx, up)
	if err != nil {
		return model.Item{}, nil, apperr.Wrap(apperr.Inconsistency, err,
			"item %q upserted remotely (external id %s) but local persistence failed", spec.Name, remote.ID)
	}
	return item, vars, nil
}

func remoteVariations(obj pos.CatalogObject) []pos.CatalogObject {
	if obj.ItemData == nil {
		return nil
	}
	return obj.ItemData.Variations
}

func remoteErr(err error, format string, args ...any) error {
	var posErr *pos.Error
	if errors.As(err, &posErr) && !posErr.Retryable() {
		return apperr.Wrap(apperr.RemoteFatal, err, format, args...)
	}
	return apperr.Wrap(apperr.RemoteRetryable, err, format, args...)
}
