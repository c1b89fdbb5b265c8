package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

type RoomStore interface {
	GetListItem(ctx context.Context, id uint64) (*repository.RoomListItem, error)
	List(ctx context.Context, f repository.RoomFilter, p repository.Page) ([]repository.RoomListItem, int, error)
	Delete(ctx context.Context, id uint64) error
}

// RoomWriter owns room writes and the live occupancy views.
// service.RoomService implements it.
type RoomWriter interface {
	Create(ctx context.Context, in service.RoomInput) (*model.Room, error)
	Update(ctx context.Context, id uint64, in service.RoomInput) (*model.Room, error)
	Occupancy(ctx context.Context, id uint64) (service.OccupancyInfo, error)
	Available(ctx context.Context) ([]service.AvailableRoom, error)
	Details(ctx context.Context, id uint64) (*service.RoomDetails, error)
}

// RoomHandler serves /v1/rooms.
type RoomHandler struct {
	Rooms RoomStore
	Svc   RoomWriter
	Log   *zap.Logger
}

func NewRoomHandler(rooms RoomStore, svc RoomWriter, log *zap.Logger) *RoomHandler {
	return &RoomHandler{Rooms: rooms, Svc: svc, Log: log}
}

// roomReq has no status field: status is derived from occupancy.
type roomReq struct {
	RoomTypeID   uint64 `json:"room_type_id" validate:"required"`
	RoomNumber   string `json:"room_number" validate:"required,max=10"`
	MaxOccupancy int    `json:"max_occupancy" validate:"required,min=1"`
}

func (r roomReq) input() service.RoomInput {
	return service.RoomInput{RoomTypeID: r.RoomTypeID, RoomNumber: r.RoomNumber, MaxOccupancy: r.MaxOccupancy}
}

// List handles GET /v1/rooms?q=&status=&room_type_id=&page=&size=.
func (h *RoomHandler) List(c echo.Context) error {
	typeID, err := queryID(c, "room_type_id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	f := repository.RoomFilter{
		Number:     strings.TrimSpace(c.QueryParam("q")),
		Status:     model.RoomStatus(c.QueryParam("status")),
		RoomTypeID: typeID,
	}
	if f.Status != "" && f.Status != model.RoomAvailable && f.Status != model.RoomFull {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be Available or Full"})
	}
	p := pageFrom(c)
	items, total, err := h.Rooms.List(c.Request().Context(), f, p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *RoomHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	rm, err := h.Rooms.GetListItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rm)
}

func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	rm, err := h.Svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, rm)
}

func (h *RoomHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req roomReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	rm, err := h.Svc.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rm)
}

func (h *RoomHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Rooms.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Occupancy handles GET /v1/rooms/:id/occupancy.
func (h *RoomHandler) Occupancy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	info, err := h.Svc.Occupancy(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, info)
}

// Details handles GET /v1/rooms/:id/details.
func (h *RoomHandler) Details(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	d, err := h.Svc.Details(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Available handles GET /v1/rooms/available.
func (h *RoomHandler) Available(c echo.Context) error {
	rooms, err := h.Svc.Available(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rooms, "total": len(rooms)})
}
