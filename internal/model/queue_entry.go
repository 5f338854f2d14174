package model

import "time"

// QueueEntry is a party waiting for seats at a restaurant.  Entries are
// drained strictly in JoinedAt order (ties broken by id).  A user holds
// at most one active entry per restaurant.
type QueueEntry struct {
	ID           uint64    // queue_entries.id
	RestaurantID uint64    // queue_entries.restaurant_id
	UserID       uint64    // queue_entries.user_id
	PartySize    int       // queue_entries.party_size (>= 1)
	JoinedAt     time.Time // queue_entries.joined_at
}
