package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
	"github.com/iliyamo/restaurant-waitlist/internal/pos/posmock"
)

// fakeStore upserts catalog rows in memory keyed by reference id, the
// same convergence rule the MySQL store enforces with unique keys.
type fakeStore struct {
	categories map[string]model.Category // by reference
	items      map[string]model.Item
	variations map[string]model.Variation
	nextID     uint64
	failNext   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: map[string]model.Category{},
		items:      map[string]model.Item{},
		variations: map[string]model.Variation{},
		nextID:     1,
	}
}

func (s *fakeStore) id() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *fakeStore) UpsertCategory(_ context.Context, restaurantID uint64, name, referenceID, externalID string) (model.Category, error) {
	if s.failNext != nil {
		return model.Category{}, s.failNext
	}
	c, ok := s.categories[referenceID]
	if !ok {
		c = model.Category{ID: s.id(), RestaurantID: restaurantID, ReferenceID: referenceID}
	}
	c.Name = name
	c.ExternalID = &externalID
	s.categories[referenceID] = c
	return c, nil
}

func (s *fakeStore) UpsertItem(_ context.Context, up ItemUpsert) (model.Item, []model.Variation, error) {
	if s.failNext != nil {
		return model.Item{}, nil, s.failNext
	}
	it, ok := s.items[up.ReferenceID]
	if !ok {
		it = model.Item{ID: s.id(), CategoryID: up.CategoryID, ReferenceID: up.ReferenceID}
	}
	it.Name = up.Name
	ext := up.ExternalID
	it.ExternalID = &ext
	s.items[up.ReferenceID] = it

	out := make([]model.Variation, 0, len(up.Variations))
	for _, v := range up.Variations {
		row, ok := s.variations[v.ReferenceID]
		if !ok {
			row = model.Variation{ID: s.id(), ItemID: it.ID, ReferenceID: v.ReferenceID, Quantity: v.Quantity}
		}
		row.Name = v.Name
		row.PriceCents = v.PriceCents
		vext := v.ExternalID
		row.ExternalID = &vext
		s.variations[v.ReferenceID] = row
		out = append(out, row)
	}
	return it, out, nil
}

var testRestaurant = model.Restaurant{ID: 1, Name: "Trattoria", PlaceID: "p1", TotalSeats: 20, AvailableSeats: 20}

func TestReference(t *testing.T) {
	assert.Equal(t, "#Hot_Drinks__p1", Reference("p1", "Hot Drinks"))
	assert.Equal(t, "#Pizza__Extra_Large__p1", Reference("p1", "Pizza", "Extra Large"))
}

func TestUpsertCategory_RecordsExternalID(t *testing.T) {
	store := newFakeStore()
	client := posmock.NewClient(t)

	client.On("UpsertCatalogObject", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(obj pos.CatalogObject) bool {
			return obj.Type == pos.TypeCategory && obj.ID == "#Hot_Drinks__p1" && obj.CategoryData.Name == "Hot Drinks"
		})).Return(pos.CatalogObject{Type: pos.TypeCategory, ID: "CAT-1"}, nil)

	cat, err := NewMapper(store, client).UpsertCategory(context.Background(), testRestaurant, "Hot Drinks")
	require.NoError(t, err)
	require.NotNil(t, cat.ExternalID)
	assert.Equal(t, "CAT-1", *cat.ExternalID)
	assert.Equal(t, "#Hot_Drinks__p1", cat.ReferenceID)
}

func TestUpsertCategory_SecondUpsertConvergesToOneRow(t *testing.T) {
	store := newFakeStore()
	client := posmock.NewClient(t)

	keys := map[string]bool{}
	client.On("UpsertCatalogObject", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { keys[args.String(1)] = true }).
		Return(pos.CatalogObject{Type: pos.TypeCategory, ID: "CAT-1"}, nil).Twice()

	m := NewMapper(store, client)
	first, err := m.UpsertCategory(context.Background(), testRestaurant, "Hot Drinks")
	require.NoError(t, err)
	second, err := m.UpsertCategory(context.Background(), testRestaurant, "Hot Drinks")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeated upsert must not create a second row")
	assert.Len(t, store.categories, 1)
	assert.Len(t, keys, 2, "each attempt must carry a fresh idempotency token")
}

func TestUpsertCategory_LocalFailureAfterRemoteSuccess(t *testing.T) {
	store := newFakeStore()
	store.failNext = errors.New("deadlock")
	client := posmock.NewClient(t)

	client.On("UpsertCatalogObject", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pos.CatalogObject{Type: pos.TypeCategory, ID: "CAT-1"}, nil)

	_, err := NewMapper(store, client).UpsertCategory(context.Background(), testRestaurant, "Hot Drinks")
	assert.True(t, apperr.IsKind(err, apperr.Inconsistency))
	assert.Contains(t, err.Error(), "CAT-1")
}

func TestUpsertCategory_RemoteFailureClassified(t *testing.T) {
	store := newFakeStore()
	client := posmock.NewClient(t)

	client.On("UpsertCatalogObject", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pos.CatalogObject{}, &pos.Error{StatusCode: 400, Op: "upsert catalog object", Detail: "bad name"})

	_, err := NewMapper(store, client).UpsertCategory(context.Background(), testRestaurant, "Hot Drinks")
	assert.True(t, apperr.IsKind(err, apperr.RemoteFatal))
	assert.Empty(t, store.categories)
}

func TestUpsertItem_MapsVariationIDsByPosition(t *testing.T) {
	store := newFakeStore()
	client := posmock.NewClient(t)

	extCat := "CAT-1"
	category := model.Category{ID: 10, RestaurantID: 1, Name: "Pizza", ReferenceID: "#Pizza__p1", ExternalID: &extCat}

	client.On("UpsertCatalogObject", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(obj pos.CatalogObject) bool {
			return obj.Type == pos.TypeItem &&
				obj.ItemData.CategoryID == "CAT-1" &&
				len(obj.ItemData.Variations) == 2 &&
				obj.ItemData.Variations[0].ItemVariationData.PriceMoney.Amount == 1200
		})).Return(pos.CatalogObject{
		Type: pos.TypeItem,
		ID:   "ITEM-1",
		ItemData: &pos.ItemData{
			Name: "Margherita",
			Variations: []pos.CatalogObject{
				{Type: pos.TypeItemVariation, ID: "VAR-1"},
				{Type: pos.TypeItemVariation, ID: "VAR-2"},
			},
		},
	}, nil)

	spec := ItemSpec{
		Name:        "Margherita",
		Description: "Tomato and mozzarella",
		Variations: []VariationSpec{
			{Name: "Regular", PriceCents: 1200, Quantity: 100},
			{Name: "Large", PriceCents: 1600, Quantity: 100},
		},
	}
	item, variations, err := NewMapper(store, client).UpsertItem(context.Background(), testRestaurant, category, spec)
	require.NoError(t, err)
	require.NotNil(t, item.ExternalID)
	assert.Equal(t, "ITEM-1", *item.ExternalID)
	require.Len(t, variations, 2)
	assert.Equal(t, "VAR-1", *variations[0].ExternalID)
	assert.Equal(t, "VAR-2", *variations[1].ExternalID)
	assert.Equal(t, "#Margherita__Regular__p1", variations[0].ReferenceID)
}

func TestUpsertItem_CategoryWithoutExternalID(t *testing.T) {
	store := newFakeStore()
	client := posmock.NewClient(t)

	category := model.Category{ID: 10, Name: "Pizza", ReferenceID: "#Pizza__p1"}
	_, _, err := NewMapper(store, client).UpsertItem(context.Background(), testRestaurant, category, ItemSpec{Name: "Margherita"})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}
