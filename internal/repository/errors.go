// Package repository holds the storage adapters of the service: the MySQL
// and in-memory implementations of engine.Store and the staff account
// stores.  The sentinel values below let handlers distinguish account
// failures without knowing which backend is in use.
package repository

import "errors"

// ErrEmailExists is returned when a staff account is created with an
// email that is already registered.  Handlers translate it into 409.
var ErrEmailExists = errors.New("email already exists")

// ErrStaffNotFound is returned when no staff account matches the lookup.
var ErrStaffNotFound = errors.New("staff not found")
