// Package inventory keeps the local stock mirror of menu variations in
// lock-step with the external POS inventory ledger.  Reconciliation
// reads the authoritative external count, issues the minimal adjustment
// that brings it to the target quantity, and only then updates the
// local mirror.  The local row is never touched when the remote call
// fails, and a local failure after a confirmed remote adjustment is
// reported as an inconsistency rather than a retryable error.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
)

// Reason states why a reconciliation is issued; it selects the
// adjustment transition together with the sign of the computed delta.
type Reason string

const (
	ReasonRestock Reason = "restock"
	ReasonSale    Reason = "sale"
	ReasonWaste   Reason = "waste"
)

// Store is the persistence port of the ledger.  Adjust locks the
// variation row identified by referenceID and runs fn under that lock,
// so concurrent reconciliations of one variation serialize and each
// computes its delta from the quantity the previous one left behind.
// Adjust returns sql.ErrNoRows for unknown references and commits only
// when fn returns nil.
type Store interface {
	Adjust(ctx context.Context, referenceID string, fn func(Tx) error) error
}

// Tx is the variation-scoped session handed to Adjust callbacks.
type Tx interface {
	Variation() model.Variation
	SetQuantity(ctx context.Context, quantity int) error
}

// Ledger issues inventory adjustments against the POS and mirrors
// confirmed quantities locally.
type Ledger struct {
	store Store
	pos   pos.Client
	now   func() time.Time
}

// NewLedger builds a Ledger over the given store and POS client.
func NewLedger(store Store, client pos.Client) *Ledger {
	return &Ledger{store: store, pos: client, now: func() time.Time { return time.Now().UTC() }}
}

// Outcome describes one confirmed reconciliation.
type Outcome struct {
	VariationRef string
	ExternalID   string
	FromState    string
	ToState      string
	Adjusted     int // units moved by the issued adjustment
	Quantity     int // local mirror after the reconciliation
}

// Reconcile brings the external quantity of the referenced variation to
// targetQuantity and mirrors it locally.  The current external count is
// the authoritative basis for the delta; the local mirror may be stale
// and is never consulted for it.  The whole read-adjust-mirror sequence
// runs under the variation row lock so two concurrent calls cannot both
// read the same external count and double-apply an adjustment.
func (l *Ledger) Reconcile(ctx context.Context, variationRef string, targetQuantity int, reason Reason) (Outcome, error) {
	if targetQuantity < 0 {
		return Outcome{}, apperr.New(apperr.InvalidInput, "target quantity must not be negative")
	}
	var out Outcome
	err := l.store.Adjust(ctx, variationRef, func(tx Tx) error {
		variation := tx.Variation()
		if variation.ExternalID == nil {
			return apperr.New(apperr.NotFound, "variation %q has no external catalog id", variationRef)
		}
		externalID := *variation.ExternalID

		counts, err := l.pos.BatchRetrieveInventoryCounts(ctx, []string{externalID})
		if err != nil {
			return classifyRemote(err, "retrieve inventory count for %q", variationRef)
		}
		current := 0
		for _, ct := range counts {
			if ct.ObjectID == externalID {
				current = ct.Quantity
			}
		}

		delta := targetQuantity - current
		change := pos.InventoryChange{ObjectID: externalID, OccurredAt: l.now()}
		switch {
		case reason == ReasonSale:
			// A sale asserts the absolute sold amount, not a delta.
			change.FromState = pos.StateInStock
			change.ToState = pos.StateSold
			change.Quantity = targetQuantity
		case delta <= 0:
			change.FromState = pos.StateInStock
			change.ToState = pos.StateWaste
			change.Quantity = -delta
		default:
			change.FromState = pos.StateNone
			change.ToState = pos.StateInStock
			change.Quantity = delta
		}

		if err := l.pos.BatchChangeInventory(ctx, uuid.NewString(), []pos.InventoryChange{change}); err != nil {
			return classifyRemote(err, "adjust inventory for %q", variationRef)
		}
		if err := tx.SetQuantity(ctx, targetQuantity); err != nil {
			// Remote ledger already moved; the mirror is now behind.
			return apperr.Wrap(apperr.Inconsistency, err,
				"inventory adjusted remotely for %q (external id %s) but local mirror update failed", variationRef, externalID)
		}
		out = Outcome{
			VariationRef: variationRef,
			ExternalID:   externalID,
			FromState:    change.FromState,
			ToState:      change.ToState,
			Adjusted:     change.Quantity,
			Quantity:     targetQuantity,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, apperr.Wrap(apperr.NotFound, err, "variation with reference %q does not exist", variationRef)
		}
		return Outcome{}, err
	}
	return out, nil
}

// Adjustment is one requested reconciliation of a batch.
type Adjustment struct {
	VariationRef string
	Quantity     int
}

// BatchResult is the per-variation outcome of a batch reconciliation.
// Err is nil when the variation reconciled successfully.
type BatchResult struct {
	VariationRef string
	Outcome      Outcome
	Err          error
}

// ReconcileBatch processes each adjustment independently and reports a
// per-variation outcome list.  A failure on one variation never aborts
// the rest; partial success is a valid, reportable result.
func (l *Ledger) ReconcileBatch(ctx context.Context, adjustments []Adjustment, reason Reason) []BatchResult {
	results := make([]BatchResult, 0, len(adjustments))
	for _, adj := range adjustments {
		outcome, err := l.Reconcile(ctx, adj.VariationRef, adj.Quantity, reason)
		results = append(results, BatchResult{VariationRef: adj.VariationRef, Outcome: outcome, Err: err})
	}
	return results
}

// classifyRemote maps a POS client error to the retryable or fatal
// remote-failure kind, preserving the original error verbatim.
func classifyRemote(err error, format string, args ...any) error {
	var posErr *pos.Error
	if errors.As(err, &posErr) && !posErr.Retryable() {
		return apperr.Wrap(apperr.RemoteFatal, err, format, args...)
	}
	return apperr.Wrap(apperr.RemoteRetryable, err, format, args...)
}
