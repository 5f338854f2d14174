// Package repository holds the MySQL implementations of the store
// ports the services depend on. Lookups report missing rows with
// sql.ErrNoRows so callers can map them to typed not-found errors.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned by UserRepo.Create when the email is
// already registered.
var ErrEmailExists = errors.New("email already exists")

// isDuplicateKey reports whether err is a MySQL duplicate-key
// violation (error 1062).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
