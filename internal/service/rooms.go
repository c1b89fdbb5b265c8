package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
)

// RoomViews are the read-only room queries behind the occupancy and
// availability endpoints.
type RoomViews interface {
	GetListItem(ctx context.Context, id uint64) (*repository.RoomListItem, error)
	ListWithActiveCount(ctx context.Context, day model.Date) ([]repository.RoomActiveCount, error)
}

type ResidentLister interface {
	Residents(ctx context.Context, roomID uint64, activeOn *model.Date) ([]repository.Resident, error)
}

// OccupancyInfo is a room's live occupancy as shown to clients.
type OccupancyInfo struct {
	RoomID           uint64           `json:"room_id"`
	RoomNumber       string           `json:"room_number"`
	MaxOccupancy     int              `json:"max_occupancy"`
	CurrentOccupancy int              `json:"current_occupancy"`
	AvailableSpots   int              `json:"available_spots"`
	Status           model.RoomStatus `json:"status"`
	IsAvailable      bool             `json:"is_available"`
}

func newOccupancyInfo(number string, occ model.Occupancy) OccupancyInfo {
	return OccupancyInfo{
		RoomID:           occ.RoomID,
		RoomNumber:       number,
		MaxOccupancy:     occ.Max,
		CurrentOccupancy: occ.Current,
		AvailableSpots:   occ.AvailableSpots(),
		Status:           occ.Status,
		IsAvailable:      occ.Status == model.RoomAvailable,
	}
}

// AvailableRoom is a room with at least one free spot today.
type AvailableRoom struct {
	repository.RoomListItem
	CurrentOccupancy int `json:"current_occupancy"`
	AvailableSpots   int `json:"available_spots"`
}

// RoomDetails is a room with its type, live occupancy and the students it
// houses today and has ever housed.
type RoomDetails struct {
	repository.RoomListItem
	Occupancy        OccupancyInfo         `json:"occupancy"`
	CurrentResidents []repository.Resident `json:"current_residents"`
	History          []repository.Resident `json:"history"`
}

// RefreshSummary reports a bulk status refresh.
type RefreshSummary struct {
	Rooms   int `json:"rooms"`
	Changed int `json:"changed"`
}

type RoomInput struct {
	RoomTypeID   uint64
	RoomNumber   string
	MaxOccupancy int
}

func (in RoomInput) validate() error {
	switch {
	case in.RoomTypeID == 0:
		return &ValidationError{Field: "room_type_id", Msg: "is required"}
	case strings.TrimSpace(in.RoomNumber) == "":
		return &ValidationError{Field: "room_number", Msg: "is required"}
	case len(in.RoomNumber) > 10:
		return &ValidationError{Field: "room_number", Msg: "must be at most 10 characters"}
	case in.MaxOccupancy < 1:
		return &ValidationError{Field: "max_occupancy", Msg: "must be at least 1"}
	}
	return nil
}

// RoomService owns room writes so the derived status always follows the
// capacity, plus the occupancy read views.
type RoomService struct {
	tx        Transactor
	rooms     RoomStore
	views     RoomViews
	residents ResidentLister
	occupancy *OccupancyEvaluator
	today     Today
	notify    notifier
}

func NewRoomService(tx Transactor, rooms RoomStore, views RoomViews, residents ResidentLister,
	occ *OccupancyEvaluator, today Today, pub EventPublisher, log *zap.Logger) *RoomService {
	return &RoomService{
		tx:        tx,
		rooms:     rooms,
		views:     views,
		residents: residents,
		occupancy: occ,
		today:     today,
		notify:    notifier{pub: pub, log: log},
	}
}

func (s *RoomService) Create(ctx context.Context, in RoomInput) (*model.Room, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.Room
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		rm := &model.Room{
			RoomTypeID:   in.RoomTypeID,
			RoomNumber:   strings.TrimSpace(in.RoomNumber),
			MaxOccupancy: in.MaxOccupancy,
			Status:       model.RoomAvailable,
		}
		if err := s.rooms.CreateTx(ctx, tx, rm); err != nil {
			return err
		}
		occ, ev, err := s.occupancy.RefreshTx(ctx, tx, rm.ID, s.today())
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
		rm.Status = occ.Status
		out = rm
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// Update changes type, number or capacity and re-derives the status under
// the new capacity.
func (s *RoomService) Update(ctx context.Context, id uint64, in RoomInput) (*model.Room, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.Room
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		rm, err := s.rooms.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		rm.RoomTypeID = in.RoomTypeID
		rm.RoomNumber = strings.TrimSpace(in.RoomNumber)
		rm.MaxOccupancy = in.MaxOccupancy
		if err := s.rooms.UpdateTx(ctx, tx, rm); err != nil {
			return err
		}
		occ, ev, err := s.occupancy.RefreshTx(ctx, tx, id, s.today())
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
		rm.Status = occ.Status
		out = rm
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// Occupancy evaluates a room live. Nothing is written.
func (s *RoomService) Occupancy(ctx context.Context, id uint64) (OccupancyInfo, error) {
	var info OccupancyInfo
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		rm, err := s.rooms.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		occ, err := s.occupancy.evaluate(ctx, tx, rm, s.today())
		if err != nil {
			return err
		}
		info = newOccupancyInfo(rm.RoomNumber, occ)
		return nil
	})
	return info, err
}

// Available lists rooms whose live count today is below capacity.
func (s *RoomService) Available(ctx context.Context) ([]AvailableRoom, error) {
	rooms, err := s.views.ListWithActiveCount(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := []AvailableRoom{}
	for _, r := range rooms {
		occ := model.Occupancy{RoomID: r.ID, Current: r.Active, Max: r.MaxOccupancy}
		if occ.AvailableSpots() == 0 {
			continue
		}
		out = append(out, AvailableRoom{RoomListItem: r.RoomListItem, CurrentOccupancy: r.Active, AvailableSpots: occ.AvailableSpots()})
	}
	return out, nil
}

func (s *RoomService) Details(ctx context.Context, id uint64) (*RoomDetails, error) {
	item, err := s.views.GetListItem(ctx, id)
	if err != nil {
		return nil, err
	}
	today := s.today()
	all, err := s.residents.Residents(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("residents of room %d: %w", id, err)
	}
	current := []repository.Resident{}
	for _, r := range all {
		if today.Within(r.StartDate, r.EndDate) {
			current = append(current, r)
		}
	}
	occ := model.Occupancy{
		RoomID:  id,
		Current: len(current),
		Max:     item.MaxOccupancy,
		Status:  model.StatusFor(len(current), item.MaxOccupancy),
	}
	return &RoomDetails{
		RoomListItem:     *item,
		Occupancy:        newOccupancyInfo(item.RoomNumber, occ),
		CurrentResidents: current,
		History:          all,
	}, nil
}

// RefreshAll re-derives the status of every room, one transaction per
// room. It stops at the first failure.
func (s *RoomService) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	ids, err := s.rooms.ListIDs(ctx)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("list rooms: %w", err)
	}
	today := s.today()
	var sum RefreshSummary
	for _, id := range ids {
		var box outbox
		err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
			box.reset()
			_, ev, err := s.occupancy.RefreshTx(ctx, tx, id, today)
			if err != nil {
				return err
			}
			if ev != nil {
				box.add(*ev)
			}
			return nil
		})
		if err != nil {
			return sum, fmt.Errorf("refresh room %d: %w", id, err)
		}
		sum.Rooms++
		sum.Changed += len(box.events)
		s.notify.flush(ctx, &box)
	}
	return sum, nil
}
