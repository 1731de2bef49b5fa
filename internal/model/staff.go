package model

import "time"

// Staff represents a restaurant worker account as stored in the `staff`
// table.  Staff members operate the table pool (release, hold, group
// assignment) through authenticated endpoints.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique login address.
//	PasswordHash – bcrypt hashed password.
//	Role         – STAFF or ADMIN.
//	IsActive     – whether the account may log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type Staff struct {
	ID           uint64    // staff.id
	Email        string    // staff.email
	PasswordHash string    // staff.password_hash
	Role         string    // staff.role
	IsActive     bool      // staff.is_active
	CreatedAt    time.Time // staff.created_at
	UpdatedAt    time.Time // staff.updated_at
}

const (
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)
