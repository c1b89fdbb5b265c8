// Package repository holds the MySQL data access layer. Every method that
// takes part in a unit of work has a *Tx variant that runs on the caller's
// transaction; plain methods run on the pool and serve read views.
package repository

import (
	"errors"
	"fmt"

	"github.com/iliyamo/dorm-management/internal/database"
)

// ErrNotFound is wrapped by every "<entity> not found" sentinel below so
// handlers can map the whole family to 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of existing
// state. Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

var (
	ErrStudentNotFound  = fmt.Errorf("student %w", ErrNotFound)
	ErrRoomNotFound     = fmt.Errorf("room %w", ErrNotFound)
	ErrRoomTypeNotFound = fmt.Errorf("room type %w", ErrNotFound)
	ErrContractNotFound = fmt.Errorf("contract %w", ErrNotFound)
	ErrServiceNotFound  = fmt.Errorf("service %w", ErrNotFound)
	ErrUsageNotFound    = fmt.Errorf("service usage %w", ErrNotFound)
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
)

var (
	// ErrInUse means a delete was blocked by rows that still reference the
	// record (a room with contracts, a service with usages, ...).
	ErrInUse = fmt.Errorf("%w: record is still referenced", ErrConflict)
	// ErrDuplicate means a unique key (room number, username, ...) is taken.
	ErrDuplicate = fmt.Errorf("%w: duplicate value", ErrConflict)
)

// translate maps driver errors onto the sentinels above.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsDuplicate(err):
		return ErrDuplicate
	case database.IsRowReferenced(err):
		return ErrInUse
	}
	return err
}
