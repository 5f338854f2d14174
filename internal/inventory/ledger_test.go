package inventory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
	"github.com/iliyamo/restaurant-waitlist/internal/pos/posmock"
)

// fakeStore serializes Adjust callbacks behind one mutex, the same
// way the MySQL store serializes them behind the variation row lock.
type fakeStore struct {
	mu         sync.Mutex
	variations map[string]model.Variation // by reference
	setErr     error
}

func (s *fakeStore) Adjust(_ context.Context, ref string, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variations[ref]
	if !ok {
		return sql.ErrNoRows
	}
	tx := &fakeTx{store: s, v: v}
	if err := fn(tx); err != nil {
		return err // rollback: pending write discarded
	}
	if tx.pending != nil {
		v.Quantity = *tx.pending
		s.variations[ref] = v
	}
	return nil
}

type fakeTx struct {
	store   *fakeStore
	v       model.Variation
	pending *int
}

func (t *fakeTx) Variation() model.Variation { return t.v }

func (t *fakeTx) SetQuantity(_ context.Context, qty int) error {
	if t.store.setErr != nil {
		return t.store.setErr
	}
	t.pending = &qty
	return nil
}

func extID(s string) *string { return &s }

func storeWith(ref string, quantity int) *fakeStore {
	return &fakeStore{variations: map[string]model.Variation{
		ref: {ID: 7, ItemID: 3, Name: "Large", ReferenceID: ref, ExternalID: extID("EXT-7"), Quantity: quantity},
	}}
}

func TestReconcile_WasteWhenTargetBelowExternal(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 100}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(changes []pos.InventoryChange) bool {
			return len(changes) == 1 &&
				changes[0].FromState == pos.StateInStock &&
				changes[0].ToState == pos.StateWaste &&
				changes[0].Quantity == 20
		})).Return(nil)

	outcome, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonWaste)
	require.NoError(t, err)
	assert.Equal(t, pos.StateWaste, outcome.ToState)
	assert.Equal(t, 20, outcome.Adjusted)
	assert.Equal(t, 80, outcome.Quantity)
	assert.Equal(t, 80, store.variations["#Pizza__Large__p1"].Quantity)
}

func TestReconcile_RestockWhenTargetAboveExternal(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 60)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 60}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(changes []pos.InventoryChange) bool {
			return len(changes) == 1 &&
				changes[0].FromState == pos.StateNone &&
				changes[0].ToState == pos.StateInStock &&
				changes[0].Quantity == 20
		})).Return(nil)

	outcome, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonRestock)
	require.NoError(t, err)
	assert.Equal(t, pos.StateInStock, outcome.ToState)
	assert.Equal(t, 20, outcome.Adjusted)
}

func TestReconcile_SaleDeductsAbsoluteAmount(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 100}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"),
		mock.MatchedBy(func(changes []pos.InventoryChange) bool {
			return len(changes) == 1 &&
				changes[0].FromState == pos.StateInStock &&
				changes[0].ToState == pos.StateSold &&
				changes[0].Quantity == 3
		})).Return(nil)

	outcome, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 3, ReasonSale)
	require.NoError(t, err)
	assert.Equal(t, pos.StateSold, outcome.ToState)
	assert.Equal(t, 3, outcome.Adjusted)
	assert.Equal(t, 3, store.variations["#Pizza__Large__p1"].Quantity)
}

func TestReconcile_UnknownReference(t *testing.T) {
	store := &fakeStore{variations: map[string]model.Variation{}}
	client := posmock.NewClient(t)

	_, err := NewLedger(store, client).Reconcile(context.Background(), "#missing", 10, ReasonRestock)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestReconcile_RemoteFailureLeavesMirrorUntouched(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 100}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&pos.Error{StatusCode: 503, Op: "batch change inventory", Detail: "unavailable"})

	_, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonWaste)
	assert.True(t, apperr.IsKind(err, apperr.RemoteRetryable))
	assert.Equal(t, 100, store.variations["#Pizza__Large__p1"].Quantity)
}

func TestReconcile_ValidationFailureIsFatal(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return(nil, &pos.Error{StatusCode: 400, Op: "batch retrieve inventory counts", Detail: "bad object id"})

	_, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonWaste)
	assert.True(t, apperr.IsKind(err, apperr.RemoteFatal))
}

func TestReconcile_LocalFailureAfterRemoteSuccessIsInconsistency(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	store.setErr = errors.New("disk full")
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 100}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil)

	_, err := NewLedger(store, client).Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonWaste)
	assert.True(t, apperr.IsKind(err, apperr.Inconsistency))
	assert.Contains(t, err.Error(), "EXT-7")
}

func TestReconcileBatch_PartialSuccess(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 50)
	client := posmock.NewClient(t)

	client.On("BatchRetrieveInventoryCounts", mock.Anything, []string{"EXT-7"}).
		Return([]pos.Count{{ObjectID: "EXT-7", Quantity: 50}}, nil)
	client.On("BatchChangeInventory", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil)

	results := NewLedger(store, client).ReconcileBatch(context.Background(), []Adjustment{
		{VariationRef: "#Pizza__Large__p1", Quantity: 70},
		{VariationRef: "#missing", Quantity: 10},
	}, ReasonRestock)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 70, results[0].Outcome.Quantity)
	assert.True(t, apperr.IsKind(results[1].Err, apperr.NotFound))
}

// countingPOS is a stateful inventory double. Reads and adjustments go
// through one mutex so it records exactly the interleaving the ledger
// produces.
type countingPOS struct {
	pos.Client
	mu       sync.Mutex
	external int
}

func (p *countingPOS) BatchRetrieveInventoryCounts(_ context.Context, ids []string) ([]pos.Count, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make([]pos.Count, 0, len(ids))
	for _, id := range ids {
		counts = append(counts, pos.Count{ObjectID: id, Quantity: p.external})
	}
	return counts, nil
}

func (p *countingPOS) BatchChangeInventory(_ context.Context, _ string, changes []pos.InventoryChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range changes {
		if ch.ToState == pos.StateInStock {
			p.external += ch.Quantity
		} else {
			p.external -= ch.Quantity
		}
	}
	return nil
}

func TestReconcile_ConcurrentCallsOnOneVariationSerialize(t *testing.T) {
	store := storeWith("#Pizza__Large__p1", 100)
	client := &countingPOS{external: 100}
	ledger := NewLedger(store, client)

	// Both callers target 80 from an external count of 100. Without the
	// row lock both read 100 and each issues a WASTE of 20, leaving the
	// external ledger at 60 while the mirror says 80. Serialized, the
	// second caller reads 80, computes a zero delta and changes nothing.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reconcile(context.Background(), "#Pizza__Large__p1", 80, ReasonWaste)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 80, client.external)
	assert.Equal(t, 80, store.variations["#Pizza__Large__p1"].Quantity)
}
