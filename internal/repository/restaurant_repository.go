package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-waitlist/internal/model"
)

// RestaurantRepo provides read access to the 'restaurants' table.
// Seat counter mutations go through SeatingRepo.Admit so they always
// run under the restaurant row lock.
type RestaurantRepo struct{ DB *sql.DB }

func NewRestaurantRepo(db *sql.DB) *RestaurantRepo { return &RestaurantRepo{DB: db} }

const restaurantColumns = "id,name,place_id,address,description,verified,total_seats,available_seats"

func scanRestaurant(row *sql.Row) (model.Restaurant, error) {
	var (
		r    model.Restaurant
		desc sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &r.PlaceID, &r.Address, &desc, &r.Verified, &r.TotalSeats, &r.AvailableSeats)
	if err != nil {
		return model.Restaurant{}, err
	}
	if desc.Valid {
		d := desc.String
		r.Description = &d
	}
	return r, nil
}

// GetByPlaceID fetches a restaurant by its external place identifier.
func (r *RestaurantRepo) GetByPlaceID(ctx context.Context, placeID string) (model.Restaurant, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+restaurantColumns+" FROM restaurants WHERE place_id=? LIMIT 1", placeID)
	return scanRestaurant(row)
}

// GetByID fetches a restaurant by primary key.
func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+restaurantColumns+" FROM restaurants WHERE id=? LIMIT 1", id)
	return scanRestaurant(row)
}
