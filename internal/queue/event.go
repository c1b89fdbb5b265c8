// Package queue carries domain events from the API to RabbitMQ and back
// out into an append-only journal.
package queue

import (
	"time"

	"github.com/iliyamo/dorm-management/internal/model"
)

// Event types published on the dorm events queue.
const (
	ContractAdmitted    = "contract.admitted"
	ContractUpdated     = "contract.updated"
	ContractTerminated  = "contract.terminated"
	RoomStatusChanged   = "room.status_changed"
	InvoiceTotalChanged = "invoice.total_changed"
)

// Event is published after the transaction that caused it has committed.
// Only the fields relevant to Type are set.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	ContractID uint64 `json:"contract_id,omitempty"`
	StudentID  uint64 `json:"student_id,omitempty"`
	RoomID     uint64 `json:"room_id,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`

	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Occupancy      int    `json:"occupancy,omitempty"`
	MaxOccupancy   int    `json:"max_occupancy,omitempty"`

	InvoiceID     uint64 `json:"invoice_id,omitempty"`
	Total         string `json:"total_amount,omitempty"`
	PreviousTotal string `json:"previous_total_amount,omitempty"`
}

func contractEvent(typ string, c model.Contract) Event {
	return Event{
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		ContractID: c.ID,
		StudentID:  c.StudentID,
		RoomID:     c.RoomID,
		StartDate:  c.StartDate.String(),
		EndDate:    c.EndDate.String(),
	}
}

func NewContractAdmitted(c model.Contract) Event   { return contractEvent(ContractAdmitted, c) }
func NewContractUpdated(c model.Contract) Event    { return contractEvent(ContractUpdated, c) }
func NewContractTerminated(c model.Contract) Event { return contractEvent(ContractTerminated, c) }

func NewRoomStatusChanged(occ model.Occupancy, previous model.RoomStatus) Event {
	return Event{
		Type:           RoomStatusChanged,
		OccurredAt:     time.Now().UTC(),
		RoomID:         occ.RoomID,
		Status:         string(occ.Status),
		PreviousStatus: string(previous),
		Occupancy:      occ.Current,
		MaxOccupancy:   occ.Max,
	}
}

func NewInvoiceTotalChanged(invoiceID uint64, previous, total model.Money) Event {
	return Event{
		Type:          InvoiceTotalChanged,
		OccurredAt:    time.Now().UTC(),
		InvoiceID:     invoiceID,
		Total:         total.String(),
		PreviousTotal: previous.String(),
	}
}
