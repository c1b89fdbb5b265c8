package model

import "time"

// RoleAdmin is the only role issued by the dormitory back office.
const RoleAdmin = "ADMIN"

// User mirrors the `users` table. Only the bcrypt hash of the password is
// stored.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
