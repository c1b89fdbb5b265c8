package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
)

// Proposal is a contract write awaiting admission.
type Proposal struct {
	StudentID uint64
	RoomID    uint64
	Start     model.Date
	End       model.Date
}

func (p Proposal) validate() error {
	switch {
	case p.StudentID == 0:
		return &ValidationError{Field: "student_id", Msg: "is required"}
	case p.RoomID == 0:
		return &ValidationError{Field: "room_id", Msg: "is required"}
	case p.Start.IsZero():
		return &ValidationError{Field: "start_date", Msg: "is required"}
	case p.End.IsZero():
		return &ValidationError{Field: "end_date", Msg: "is required"}
	case p.End.Before(p.Start.Time):
		return &ValidationError{Field: "end_date", Msg: "must not be before start_date"}
	}
	return nil
}

// AdmissionGuard decides whether a contract may be created or moved.
//
// A proposal is admitted when
//   - the student has no other contract active today (checked only when the
//     student is new to this contract),
//   - no other contract of the student overlaps the proposed period,
//   - the target room's active count today, not counting the contract
//     being updated, is strictly below its max occupancy.
//
// The student row and every room involved are locked FOR UPDATE before
// anything is counted, so two admissions racing for the last bed
// serialise and the second one sees the first one's row.
type AdmissionGuard struct {
	Students  StudentStore
	Rooms     RoomStore
	Contracts ContractStore
	Occupancy *OccupancyEvaluator
}

func NewAdmissionGuard(students StudentStore, rooms RoomStore, contracts ContractStore, occ *OccupancyEvaluator) *AdmissionGuard {
	return &AdmissionGuard{Students: students, Rooms: rooms, Contracts: contracts, Occupancy: occ}
}

// AdmitTx checks p inside tx. current is the contract being updated, or
// nil for a new contract.
func (g *AdmissionGuard) AdmitTx(ctx context.Context, tx *sql.Tx, p Proposal, current *model.Contract, today model.Date) error {
	if err := p.validate(); err != nil {
		return err
	}

	var selfID uint64
	studentChanged, roomChanged, datesChanged := true, true, true
	if current != nil {
		selfID = current.ID
		studentChanged = current.StudentID != p.StudentID
		roomChanged = current.RoomID != p.RoomID
		datesChanged = !current.StartDate.Equal(p.Start.Time) || !current.EndDate.Equal(p.End.Time)
	}

	if _, err := g.Students.LockTx(ctx, tx, p.StudentID); err != nil {
		return err
	}
	target, err := g.lockRooms(ctx, tx, p.RoomID, current)
	if err != nil {
		return err
	}

	if studentChanged || datesChanged {
		if err := g.checkStudent(ctx, tx, p, selfID, studentChanged, today); err != nil {
			return err
		}
	}

	if studentChanged || roomChanged || datesChanged {
		exclude := uint64(0)
		if !roomChanged {
			exclude = selfID
		}
		n, err := g.Occupancy.countActive(ctx, tx, target.ID, today, exclude)
		if err != nil {
			return err
		}
		if n >= target.MaxOccupancy {
			return &RoomAtCapacityError{RoomID: target.ID, Current: n, Max: target.MaxOccupancy}
		}
	}
	return nil
}

// lockRooms locks the target room and, on a move, the room being left, in
// ascending id order.
func (g *AdmissionGuard) lockRooms(ctx context.Context, tx *sql.Tx, targetID uint64, current *model.Contract) (*model.Room, error) {
	ids := []uint64{targetID}
	if current != nil && current.RoomID != targetID {
		ids = append(ids, current.RoomID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var target *model.Room
	for _, id := range ids {
		rm, err := g.Rooms.LockTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) && id != targetID {
				// the room being left vanished; nothing to protect there
				continue
			}
			return nil, err
		}
		if id == targetID {
			target = rm
		}
	}
	return target, nil
}

func (g *AdmissionGuard) checkStudent(ctx context.Context, tx *sql.Tx, p Proposal, selfID uint64, studentChanged bool, today model.Date) error {
	others, err := g.Contracts.ListByStudentTx(ctx, tx, p.StudentID)
	if err != nil {
		return fmt.Errorf("list contracts of student %d: %w", p.StudentID, err)
	}
	for _, c := range others {
		if c.ID == selfID {
			continue
		}
		if (studentChanged && c.ActiveOn(today)) || c.Overlaps(p.Start, p.End) {
			return &StudentAlreadyActiveError{StudentID: p.StudentID, ContractID: c.ID}
		}
	}
	return nil
}
