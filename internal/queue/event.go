// Package queue defines message payloads exchanged over the message broker.
package queue

// PartySeatedEvent is published whenever a party takes seats, either
// immediately on join or when a seat release drains it from the wait
// queue. It carries enough for downstream consumers to log or notify
// without querying the primary database.
type PartySeatedEvent struct {
	RestaurantID   uint64 `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	PlaceID        string `json:"place_id"`
	UserID         uint64 `json:"user_id"`
	UserEmail      string `json:"user_email"`
	PartySize      int    `json:"party_size"`
	FromQueue      bool   `json:"from_queue"`
	AvailableSeats int    `json:"available_seats"`
	SeatedAt       string `json:"seated_at"`
}

// OrderPlacedEvent is published after an order has been created at the
// POS and persisted locally.
type OrderPlacedEvent struct {
	OrderID         uint64 `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
	Token           string `json:"token"`
	UserID          uint64 `json:"user_id"`
	UserEmail       string `json:"user_email"`
	PlaceID         string `json:"place_id"`
	PlacedAt        string `json:"placed_at"`
}
