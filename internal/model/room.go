package model

// RoomStatus is the derived availability of a room. It is never written by
// clients; the occupancy evaluator owns it.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "Available"
	RoomFull      RoomStatus = "Full"
)

// StatusFor derives a room status from its active-contract count.
func StatusFor(active, maxOccupancy int) RoomStatus {
	if active >= maxOccupancy {
		return RoomFull
	}
	return RoomAvailable
}

// RoomType mirrors the `room_types` table.
type RoomType struct {
	ID        uint64 `json:"id"`         // room_types.id
	Name      string `json:"name"`       // room_types.name
	RentPrice Money  `json:"rent_price"` // room_types.rent_price
}

// Room mirrors the `rooms` table.
type Room struct {
	ID           uint64     `json:"id"`            // rooms.id
	RoomTypeID   uint64     `json:"room_type_id"`  // rooms.room_type_id
	RoomNumber   string     `json:"room_number"`   // rooms.room_number
	MaxOccupancy int        `json:"max_occupancy"` // rooms.max_occupancy
	Status       RoomStatus `json:"status"`        // rooms.status
}

// Occupancy is the evaluated state of a room on a given day.
type Occupancy struct {
	RoomID  uint64
	Current int
	Max     int
	Status  RoomStatus
}

// AvailableSpots never goes negative, even for rooms whose capacity was
// lowered below the number of residents.
func (o Occupancy) AvailableSpots() int {
	if n := o.Max - o.Current; n > 0 {
		return n
	}
	return 0
}
