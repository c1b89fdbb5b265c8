package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
)

// OccupancyEvaluator derives a room's occupancy and status from its
// persisted contracts. The result is always recomputed from rows; nothing
// is patched incrementally, so running it twice gives the same answer.
type OccupancyEvaluator struct {
	Rooms     RoomStore
	Contracts ContractStore
}

func NewOccupancyEvaluator(rooms RoomStore, contracts ContractStore) *OccupancyEvaluator {
	return &OccupancyEvaluator{Rooms: rooms, Contracts: contracts}
}

// countActive counts the room's contracts active on day, skipping exclude
// (0 skips nothing).
func (e *OccupancyEvaluator) countActive(ctx context.Context, tx *sql.Tx, roomID uint64, day model.Date, exclude uint64) (int, error) {
	contracts, err := e.Contracts.ListByRoomTx(ctx, tx, roomID, day)
	if err != nil {
		return 0, fmt.Errorf("list contracts of room %d: %w", roomID, err)
	}
	n := 0
	for _, c := range contracts {
		if c.ID != exclude && c.ActiveOn(day) {
			n++
		}
	}
	return n, nil
}

func (e *OccupancyEvaluator) evaluate(ctx context.Context, tx *sql.Tx, room *model.Room, day model.Date) (model.Occupancy, error) {
	n, err := e.countActive(ctx, tx, room.ID, day, 0)
	if err != nil {
		return model.Occupancy{}, err
	}
	return model.Occupancy{
		RoomID:  room.ID,
		Current: n,
		Max:     room.MaxOccupancy,
		Status:  model.StatusFor(n, room.MaxOccupancy),
	}, nil
}

// EvaluateTx computes the occupancy of a room on day without writing.
func (e *OccupancyEvaluator) EvaluateTx(ctx context.Context, tx *sql.Tx, roomID uint64, day model.Date) (model.Occupancy, error) {
	room, err := e.Rooms.GetByIDTx(ctx, tx, roomID)
	if err != nil {
		return model.Occupancy{}, err
	}
	return e.evaluate(ctx, tx, room, day)
}

// RefreshTx locks the room, evaluates it and persists the derived status.
// When the status flips a room.status_changed event is returned for
// publication after commit.
func (e *OccupancyEvaluator) RefreshTx(ctx context.Context, tx *sql.Tx, roomID uint64, day model.Date) (model.Occupancy, *queue.Event, error) {
	room, err := e.Rooms.LockTx(ctx, tx, roomID)
	if err != nil {
		return model.Occupancy{}, nil, err
	}
	occ, err := e.evaluate(ctx, tx, room, day)
	if err != nil {
		return model.Occupancy{}, nil, err
	}
	if occ.Status == room.Status {
		return occ, nil, nil
	}
	if err := e.Rooms.SetStatusTx(ctx, tx, roomID, occ.Status); err != nil {
		return model.Occupancy{}, nil, fmt.Errorf("persist status of room %d: %w", roomID, err)
	}
	ev := queue.NewRoomStatusChanged(occ, room.Status)
	return occ, &ev, nil
}
