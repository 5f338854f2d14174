// Package order orchestrates order placement against the external POS:
// resolve every requested variation reference, create the remote order,
// persist the local order row with a customer-facing token, reconcile
// sold stock from the confirmed remote snapshot and issue an invoice.
// The remote order is the point of no return: failures after it are
// reported as degraded outcomes, never retried blindly as duplicates.
package order

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/inventory"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
)

// ErrTokenTaken is returned by Store.CreateOrder when the generated
// customer token collides with an existing order; the workflow retries
// with a fresh token.
var ErrTokenTaken = errors.New("order token already taken")

// tokenAlphabet matches the characters used for customer-facing order
// tokens.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const tokenLength = 6

// invoiceDue is how far in the future issued invoices fall due.
const invoiceDue = 5 * 24 * time.Hour

// maxTokenAttempts bounds the collision retry loop when persisting the
// local order row.
const maxTokenAttempts = 5

// Store is the persistence port of the workflow.  Lookups return
// sql.ErrNoRows for missing rows; CreateOrder returns ErrTokenTaken on
// a token collision.
type Store interface {
	UserByEmail(ctx context.Context, email string) (model.User, error)
	VariationByReference(ctx context.Context, referenceID string) (model.Variation, error)
	CreateOrder(ctx context.Context, userID uint64, externalOrderID, token string) (model.Order, error)
	OrderByToken(ctx context.Context, token string) (model.Order, error)
	SetUserSeated(ctx context.Context, userID uint64, seated bool) error
}

// Reconciler is the slice of the inventory ledger the workflow needs.
type Reconciler interface {
	Reconcile(ctx context.Context, variationRef string, targetQuantity int, reason inventory.Reason) (inventory.Outcome, error)
}

// Workflow places orders and runs the follow-up checkout flow.
type Workflow struct {
	store      Store
	ledger     Reconciler
	pos        pos.Client
	locationID string
	now        func() time.Time
}

// NewWorkflow builds a Workflow bound to the POS location all orders
// are created at.
func NewWorkflow(store Store, ledger Reconciler, client pos.Client, locationID string) *Workflow {
	return &Workflow{
		store:      store,
		ledger:     ledger,
		pos:        client,
		locationID: locationID,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Line is one requested order line.
type Line struct {
	VariationRef string
	Quantity     int
}

// Desync reports a variation whose stock reconciliation failed after
// the order was already created remotely.
type Desync struct {
	VariationRef string
	Err          error
}

// PlaceResult is the outcome of a successful placement.  Desync and
// InvoiceErr report degraded follow-up steps: the order exists either
// way and must not be re-placed.
type PlaceResult struct {
	Order      model.Order
	Confirmed  pos.Order
	Invoice    *pos.Invoice
	Desync     []Desync
	InvoiceErr error
}

// Place runs the order placement workflow for the given user and
// requested lines.
func (w *Workflow) Place(ctx context.Context, userEmail string, lines []Line) (PlaceResult, error) {
	if len(lines) == 0 {
		return PlaceResult{}, apperr.New(apperr.InvalidInput, "order must contain at least one line item")
	}
	for _, li := range lines {
		if li.Quantity <= 0 {
			return PlaceResult{}, apperr.New(apperr.InvalidInput, "line quantity for %q must be positive", li.VariationRef)
		}
	}
	user, err := w.store.UserByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlaceResult{}, apperr.Wrap(apperr.NotFound, err, "user %q does not exist", userEmail)
		}
		return PlaceResult{}, err
	}

	// Phase one: resolve every reference up front.  Unknown references
	// fail the whole order before any remote call; partial orders are
	// never created.
	refByExternal := make(map[string]string, len(lines))
	remoteLines := make([]pos.LineItem, 0, len(lines))
	for _, li := range lines {
		variation, err := w.store.VariationByReference(ctx, li.VariationRef)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return PlaceResult{}, apperr.Wrap(apperr.NotFound, err, "variation with reference %q does not exist", li.VariationRef)
			}
			return PlaceResult{}, err
		}
		if variation.ExternalID == nil {
			return PlaceResult{}, apperr.New(apperr.NotFound, "variation %q has no external catalog id", li.VariationRef)
		}
		refByExternal[*variation.ExternalID] = li.VariationRef
		remoteLines = append(remoteLines, pos.LineItem{CatalogObjectID: *variation.ExternalID, Quantity: li.Quantity})
	}

	remote, err := w.pos.CreateOrder(ctx, uuid.NewString(), w.locationID, remoteLines)
	if err != nil {
		return PlaceResult{}, remoteErr(err, "create order for %q", userEmail)
	}

	local, err := w.persistOrder(ctx, user.ID, remote.ID)
	if err != nil {
		// The remote order exists; a plain retry would duplicate it.
		return PlaceResult{}, apperr.Wrap(apperr.Inconsistency, err,
			"order %s created remotely but local persistence failed", remote.ID)
	}

	result := PlaceResult{Order: local}

	// Phase two: the confirmed snapshot is authoritative for sold
	// quantities. The POS may have adjusted the requested lines.
	confirmed, err := w.pos.RetrieveOrder(ctx, remote.ID)
	if err != nil {
		result.Confirmed = remote
		result.Desync = append(result.Desync, Desync{Err: remoteErr(err, "retrieve confirmed order %s", remote.ID)})
	} else {
		result.Confirmed = confirmed
		soldByRef := make(map[string]int)
		order := make([]string, 0, len(confirmed.Lines))
		for _, line := range confirmed.Lines {
			ref, ok := refByExternal[line.CatalogObjectID]
			if !ok {
				result.Desync = append(result.Desync, Desync{Err: apperr.New(apperr.Inconsistency,
					"confirmed order %s carries unknown catalog object %s", remote.ID, line.CatalogObjectID)})
				continue
			}
			if _, seen := soldByRef[ref]; !seen {
				order = append(order, ref)
			}
			soldByRef[ref] += line.Quantity
		}
		for _, ref := range order {
			if _, err := w.ledger.Reconcile(ctx, ref, soldByRef[ref], inventory.ReasonSale); err != nil {
				result.Desync = append(result.Desync, Desync{VariationRef: ref, Err: err})
			}
		}
	}

	invoice, err := w.pos.CreateInvoice(ctx, uuid.NewString(), remote.ID, w.now().Add(invoiceDue))
	if err != nil {
		result.InvoiceErr = remoteErr(err, "create invoice for order %s", remote.ID)
	} else {
		result.Invoice = &invoice
	}
	return result, nil
}

// persistOrder inserts the local order row, retrying with a fresh token
// when the generated 6-character token collides.
func (w *Workflow) persistOrder(ctx context.Context, userID uint64, externalOrderID string) (model.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := newToken()
		if err != nil {
			return model.Order{}, err
		}
		order, err := w.store.CreateOrder(ctx, userID, externalOrderID, token)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, ErrTokenTaken) {
			return model.Order{}, err
		}
		lastErr = err
	}
	return model.Order{}, lastErr
}

// newToken returns a random 6-character alphanumeric order token.
func newToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}

// Lookup returns the local order row and the current remote snapshot
// for a customer token.
func (w *Workflow) Lookup(ctx context.Context, token string) (model.Order, pos.Order, error) {
	local, err := w.store.OrderByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, pos.Order{}, apperr.Wrap(apperr.NotFound, err, "order with token %q does not exist", token)
		}
		return model.Order{}, pos.Order{}, err
	}
	remote, err := w.pos.RetrieveOrder(ctx, local.ExternalOrderID)
	if err != nil {
		return model.Order{}, pos.Order{}, remoteErr(err, "retrieve order %s", local.ExternalOrderID)
	}
	return local, remote, nil
}

// Checkout creates a terminal checkout for an OPEN order and clears the
// paying user's seated flag, freeing their seats for admission control.
func (w *Workflow) Checkout(ctx context.Context, token string) (pos.Checkout, error) {
	local, err := w.store.OrderByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pos.Checkout{}, apperr.Wrap(apperr.NotFound, err, "order with token %q does not exist", token)
		}
		return pos.Checkout{}, err
	}
	remote, err := w.pos.RetrieveOrder(ctx, local.ExternalOrderID)
	if err != nil {
		return pos.Checkout{}, remoteErr(err, "retrieve order %s", local.ExternalOrderID)
	}
	if remote.State != "OPEN" {
		return pos.Checkout{}, apperr.New(apperr.Conflict, "cannot create a checkout for a %s order", remote.State)
	}
	checkout, err := w.pos.CreateTerminalCheckout(ctx, uuid.NewString(), local.ExternalOrderID, remote.TotalMoney)
	if err != nil {
		return pos.Checkout{}, remoteErr(err, "create checkout for order %s", local.ExternalOrderID)
	}
	if err := w.store.SetUserSeated(ctx, local.UserID, false); err != nil {
		return pos.Checkout{}, apperr.Wrap(apperr.Inconsistency, err,
			"checkout %s created remotely but clearing seated flag for user %d failed", checkout.ID, local.UserID)
	}
	return checkout, nil
}

func remoteErr(err error, format string, args ...any) error {
	var posErr *pos.Error
	if errors.As(err, &posErr) && !posErr.Retryable() {
		return apperr.Wrap(apperr.RemoteFatal, err, format, args...)
	}
	return apperr.Wrap(apperr.RemoteRetryable, err, format, args...)
}
