package model

// Contract mirrors the `contracts` table.
type Contract struct {
	ID        uint64 `json:"id"`         // contracts.id
	StudentID uint64 `json:"student_id"` // contracts.student_id
	RoomID    uint64 `json:"room_id"`    // contracts.room_id
	StartDate Date   `json:"start_date"` // contracts.start_date
	EndDate   Date   `json:"end_date"`   // contracts.end_date
}

// ActiveOn reports whether the contract's date range contains day.
func (c Contract) ActiveOn(day Date) bool {
	return day.Within(c.StartDate, c.EndDate)
}

// Overlaps reports whether the closed ranges of two contracts intersect.
func (c Contract) Overlaps(start, end Date) bool {
	return !c.StartDate.After(end.Time) && !start.After(c.EndDate.Time)
}
