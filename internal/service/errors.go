package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/dorm-management/internal/repository"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// Reason codes carried by conflict errors so clients can tell a full room
// from a student who is already housed.
const (
	ReasonRoomAtCapacity       = "room_at_capacity"
	ReasonStudentAlreadyActive = "student_already_active"
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// StudentAlreadyActiveError rejects an admission because the student is
// housed under another contract that is active today or overlaps the
// requested period.
type StudentAlreadyActiveError struct {
	StudentID  uint64
	ContractID uint64 // the conflicting contract
}

func (e *StudentAlreadyActiveError) Error() string {
	return fmt.Sprintf("student %d already has contract %d in this period", e.StudentID, e.ContractID)
}
func (e *StudentAlreadyActiveError) Unwrap() error  { return repository.ErrConflict }
func (e *StudentAlreadyActiveError) Reason() string { return ReasonStudentAlreadyActive }

// RoomAtCapacityError rejects an admission because the room's active
// contracts already reach its max occupancy.
type RoomAtCapacityError struct {
	RoomID  uint64
	Current int
	Max     int
}

func (e *RoomAtCapacityError) Error() string {
	return fmt.Sprintf("room %d is full (%d/%d)", e.RoomID, e.Current, e.Max)
}
func (e *RoomAtCapacityError) Unwrap() error  { return repository.ErrConflict }
func (e *RoomAtCapacityError) Reason() string { return ReasonRoomAtCapacity }
