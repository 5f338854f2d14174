// Package seating implements seat admission control for restaurants: a
// party either takes seats immediately or joins a FIFO wait queue, and
// released seats drain the queue in arrival order.  All counter checks
// and mutations run inside a single restaurant-scoped transaction so
// concurrent admissions cannot both observe the same free seats.
package seating

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
)

// HeadEntry is a queue entry joined with the waiting user's email so
// drained parties can be reported and notified without extra lookups.
type HeadEntry struct {
	model.QueueEntry
	UserEmail string
}

// Tx is the restaurant-scoped session passed to the Admit callback.
// Every method operates within the same database transaction, and the
// restaurant row stays locked until the callback returns.
type Tx interface {
	// Restaurant returns the locked restaurant row.  Seat counter
	// changes made through SetAvailableSeats are reflected here.
	Restaurant() *model.Restaurant
	SetAvailableSeats(ctx context.Context, seats int) error
	// UserForUpdate returns the user row locked for update.
	UserForUpdate(ctx context.Context, userID uint64) (model.User, error)
	SetUserSeated(ctx context.Context, userID uint64, seated bool) error
	HasQueueEntry(ctx context.Context, userID uint64) (bool, error)
	AddQueueEntry(ctx context.Context, userID uint64, partySize int, joinedAt time.Time) (model.QueueEntry, error)
	// HeadcountAhead sums party sizes of entries that joined strictly
	// before the given entry (ties broken by id).
	HeadcountAhead(ctx context.Context, entry model.QueueEntry) (int, error)
	// QueueInOrder returns all entries for the restaurant in FIFO order.
	QueueInOrder(ctx context.Context) ([]HeadEntry, error)
	RemoveQueueEntry(ctx context.Context, entryID uint64) error
}

// Store is the persistence port of the controller.  Admit runs fn in
// one transaction holding a row lock on the restaurant, committing only
// when fn returns nil.  Lookup methods return sql.ErrNoRows for
// missing rows.
type Store interface {
	RestaurantByPlaceID(ctx context.Context, placeID string) (model.Restaurant, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	Admit(ctx context.Context, restaurantID uint64, fn func(Tx) error) error
	QueueHeadcount(ctx context.Context, restaurantID uint64) (int, error)
}

// Controller decides seat-now versus enqueue and drains the queue on
// seat release.
type Controller struct {
	store Store
	now   func() time.Time
}

// NewController builds a Controller over the given store.
func NewController(store Store) *Controller {
	return &Controller{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// JoinResult reports the outcome of a join: either the party was seated
// immediately or it was queued at the given 1-based headcount position.
// Position counts people ahead plus one and is a point-in-time
// estimate, not a reservation.
type JoinResult struct {
	Restaurant     model.Restaurant
	User           model.User
	Seated         bool
	Position       int
	AvailableSeats int
}

// JoinQueue admits a party of partySize for the given user at the given
// restaurant, or enqueues it when not enough seats are free.
func (c *Controller) JoinQueue(ctx context.Context, placeID, userEmail string, partySize int) (JoinResult, error) {
	if partySize <= 0 {
		return JoinResult{}, apperr.New(apperr.InvalidInput, "party size must be a positive integer")
	}
	rest, err := c.store.RestaurantByPlaceID(ctx, placeID)
	if err != nil {
		return JoinResult{}, notFound(err, "restaurant %q", placeID)
	}
	user, err := c.store.UserByEmail(ctx, userEmail)
	if err != nil {
		return JoinResult{}, notFound(err, "user %q", userEmail)
	}

	var res JoinResult
	err = c.store.Admit(ctx, rest.ID, func(tx Tx) error {
		queued, err := tx.HasQueueEntry(ctx, user.ID)
		if err != nil {
			return err
		}
		if queued {
			return apperr.New(apperr.Conflict, "user %q is already in the queue for %s", userEmail, rest.Name)
		}
		// Re-read under lock: the pre-check snapshot may be stale.
		u, err := tx.UserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if u.IsSeated {
			return apperr.New(apperr.Conflict, "user %q is already seated at a restaurant", userEmail)
		}
		r := tx.Restaurant()
		if r.AvailableSeats >= partySize {
			if err := tx.SetAvailableSeats(ctx, r.AvailableSeats-partySize); err != nil {
				return err
			}
			if err := tx.SetUserSeated(ctx, user.ID, true); err != nil {
				return err
			}
			res = JoinResult{Restaurant: *r, User: u, Seated: true, AvailableSeats: r.AvailableSeats}
			return nil
		}
		entry, err := tx.AddQueueEntry(ctx, user.ID, partySize, c.now())
		if err != nil {
			return err
		}
		ahead, err := tx.HeadcountAhead(ctx, entry)
		if err != nil {
			return err
		}
		res = JoinResult{Restaurant: *r, User: u, Position: ahead + 1, AvailableSeats: r.AvailableSeats}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	return res, nil
}

// SeatedParty is one queue entry drained by a seat release.
type SeatedParty struct {
	UserID    uint64
	UserEmail string
	PartySize int
}

// ReleaseResult reports the seat counter after a release and the
// parties drained from the queue.
type ReleaseResult struct {
	Restaurant     model.Restaurant
	AvailableSeats int
	Seated         []SeatedParty
}

// ReleaseSeats returns seatsReleased seats to the restaurant, capped at
// total capacity, then drains the queue strictly in FIFO order.  The
// drain stops at the first entry that does not fit; later smaller
// parties are never packed ahead of it.
func (c *Controller) ReleaseSeats(ctx context.Context, placeID string, seatsReleased int) (ReleaseResult, error) {
	if seatsReleased <= 0 {
		return ReleaseResult{}, apperr.New(apperr.InvalidInput, "number of seats released must be a positive integer")
	}
	rest, err := c.store.RestaurantByPlaceID(ctx, placeID)
	if err != nil {
		return ReleaseResult{}, notFound(err, "restaurant %q", placeID)
	}

	var res ReleaseResult
	err = c.store.Admit(ctx, rest.ID, func(tx Tx) error {
		r := tx.Restaurant()
		seats := r.AvailableSeats + seatsReleased
		if seats > r.TotalSeats {
			seats = r.TotalSeats
		}
		if err := tx.SetAvailableSeats(ctx, seats); err != nil {
			return err
		}
		entries, err := tx.QueueInOrder(ctx)
		if err != nil {
			return err
		}
		seated := make([]SeatedParty, 0, len(entries))
		for _, e := range entries {
			if e.PartySize > seats {
				break
			}
			seats -= e.PartySize
			if err := tx.SetAvailableSeats(ctx, seats); err != nil {
				return err
			}
			if err := tx.SetUserSeated(ctx, e.UserID, true); err != nil {
				return err
			}
			if err := tx.RemoveQueueEntry(ctx, e.ID); err != nil {
				return err
			}
			seated = append(seated, SeatedParty{UserID: e.UserID, UserEmail: e.UserEmail, PartySize: e.PartySize})
		}
		res = ReleaseResult{Restaurant: *r, AvailableSeats: seats, Seated: seated}
		return nil
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	return res, nil
}

// QueueSize returns the total headcount waiting at the restaurant: the
// sum of party sizes over all current entries, zero when the queue is
// empty.
func (c *Controller) QueueSize(ctx context.Context, placeID string) (int, error) {
	rest, err := c.store.RestaurantByPlaceID(ctx, placeID)
	if err != nil {
		return 0, notFound(err, "restaurant %q", placeID)
	}
	return c.store.QueueHeadcount(ctx, rest.ID)
}

// notFound maps a missing-row lookup error to a NotFound kind; other
// errors pass through unchanged.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.NotFound, err, format+" does not exist", args...)
	}
	return err
}
