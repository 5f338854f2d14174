package model

import "time"

// User is a registered diner or staff member.  IsSeated is a mutual
// exclusion flag: while true the user occupies a seat at some
// restaurant and may not join a wait queue or be seated elsewhere.  The
// flag is cleared only by a completed checkout.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role (CUSTOMER or STAFF)
	IsActive     bool      // users.is_active
	IsSeated     bool      // users.is_seated
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
