package model

// Restaurant represents a physical venue with a fixed seating capacity.
// AvailableSeats is the authoritative local counter used by seat
// admission; every mutation must keep 0 <= AvailableSeats <= TotalSeats.
// PlaceID is the external place identifier and is unique across rows.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name of the restaurant.
//  PlaceID        – unique external place identifier.
//  Address        – street address.
//  Description    – optional free-form description.
//  Verified       – whether the venue has been verified by staff.
//  TotalSeats     – fixed seating capacity.
//  AvailableSeats – seats currently free, bounded by TotalSeats.
type Restaurant struct {
	ID             uint64  // restaurants.id
	Name           string  // restaurants.name
	PlaceID        string  // restaurants.place_id
	Address        string  // restaurants.address
	Description    *string // restaurants.description (nullable)
	Verified       bool    // restaurants.verified
	TotalSeats     int     // restaurants.total_seats
	AvailableSeats int     // restaurants.available_seats
}
