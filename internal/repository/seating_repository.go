package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/restaurant-waitlist/internal/model"
	"github.com/iliyamo/restaurant-waitlist/internal/seating"
)

// SeatingRepo implements the seat admission store. Admit serializes all
// seat counter and queue mutations for one restaurant behind a
// SELECT ... FOR UPDATE row lock, so concurrent joins and releases
// never observe the same free seats.
type SeatingRepo struct{ DB *sql.DB }

func NewSeatingRepo(db *sql.DB) *SeatingRepo { return &SeatingRepo{DB: db} }

var _ seating.Store = (*SeatingRepo)(nil)

// RestaurantByPlaceID fetches a restaurant by its external place id.
func (r *SeatingRepo) RestaurantByPlaceID(ctx context.Context, placeID string) (model.Restaurant, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+restaurantColumns+" FROM restaurants WHERE place_id=? LIMIT 1", placeID)
	return scanRestaurant(row)
}

// UserByEmail fetches a user by email for the pre-lock existence check.
func (r *SeatingRepo) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsSeated, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// QueueHeadcount sums the party sizes of every entry waiting at the
// restaurant.
func (r *SeatingRepo) QueueHeadcount(ctx context.Context, restaurantID uint64) (int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(party_size),0) FROM queue_entries WHERE restaurant_id=?",
		restaurantID).Scan(&total)
	return total, err
}

// Admit opens a transaction, locks the restaurant row for update and
// runs fn with a session bound to that lock. The transaction commits
// only when fn returns nil; any error rolls everything back.
func (r *SeatingRepo) Admit(ctx context.Context, restaurantID uint64, fn func(seating.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		rest model.Restaurant
		desc sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		"SELECT "+restaurantColumns+" FROM restaurants WHERE id=? FOR UPDATE",
		restaurantID).Scan(&rest.ID, &rest.Name, &rest.PlaceID, &rest.Address, &desc,
		&rest.Verified, &rest.TotalSeats, &rest.AvailableSeats)
	if err != nil {
		return err
	}
	if desc.Valid {
		d := desc.String
		rest.Description = &d
	}

	if err := fn(&seatingTx{tx: tx, rest: &rest}); err != nil {
		return err
	}
	return tx.Commit()
}

// seatingTx is the restaurant-scoped session handed to Admit callbacks.
type seatingTx struct {
	tx   *sql.Tx
	rest *model.Restaurant
}

func (s *seatingTx) Restaurant() *model.Restaurant { return s.rest }

func (s *seatingTx) SetAvailableSeats(ctx context.Context, seats int) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE restaurants SET available_seats=? WHERE id=?", seats, s.rest.ID)
	if err != nil {
		return err
	}
	s.rest.AvailableSeats = seats
	return nil
}

func (s *seatingTx) UserForUpdate(ctx context.Context, userID uint64) (model.User, error) {
	var u model.User
	err := s.tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE",
		userID).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsSeated, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *seatingTx) SetUserSeated(ctx context.Context, userID uint64, seated bool) error {
	_, err := s.tx.ExecContext(ctx,
		"UPDATE users SET is_seated=? WHERE id=?", seated, userID)
	return err
}

func (s *seatingTx) HasQueueEntry(ctx context.Context, userID uint64) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM queue_entries WHERE restaurant_id=? AND user_id=?)",
		s.rest.ID, userID).Scan(&exists)
	return exists, err
}

func (s *seatingTx) AddQueueEntry(ctx context.Context, userID uint64, partySize int, joinedAt time.Time) (model.QueueEntry, error) {
	res, err := s.tx.ExecContext(ctx,
		"INSERT INTO queue_entries (restaurant_id, user_id, party_size, joined_at) VALUES (?,?,?,?)",
		s.rest.ID, userID, partySize, joinedAt)
	if err != nil {
		return model.QueueEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.QueueEntry{}, err
	}
	return model.QueueEntry{
		ID:           uint64(id),
		RestaurantID: s.rest.ID,
		UserID:       userID,
		PartySize:    partySize,
		JoinedAt:     joinedAt,
	}, nil
}

func (s *seatingTx) HeadcountAhead(ctx context.Context, entry model.QueueEntry) (int, error) {
	var total int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(party_size),0) FROM queue_entries
		 WHERE restaurant_id=? AND (joined_at < ? OR (joined_at = ? AND id < ?))`,
		s.rest.ID, entry.JoinedAt, entry.JoinedAt, entry.ID).Scan(&total)
	return total, err
}

func (s *seatingTx) QueueInOrder(ctx context.Context) ([]seating.HeadEntry, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT q.id, q.restaurant_id, q.user_id, q.party_size, q.joined_at, u.email
		 FROM queue_entries q JOIN users u ON u.id = q.user_id
		 WHERE q.restaurant_id=? ORDER BY q.joined_at, q.id`,
		s.rest.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []seating.HeadEntry
	for rows.Next() {
		var e seating.HeadEntry
		if err := rows.Scan(&e.ID, &e.RestaurantID, &e.UserID, &e.PartySize, &e.JoinedAt, &e.UserEmail); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *seatingTx) RemoveQueueEntry(ctx context.Context, entryID uint64) error {
	_, err := s.tx.ExecContext(ctx,
		"DELETE FROM queue_entries WHERE id=?", entryID)
	return err
}
