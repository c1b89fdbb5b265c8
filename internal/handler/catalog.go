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

type RoomTypeStore interface {
	Create(ctx context.Context, t *model.RoomType) error
	GetByID(ctx context.Context, id uint64) (*model.RoomType, error)
	List(ctx context.Context, p repository.Page) ([]model.RoomType, int, error)
	Update(ctx context.Context, t *model.RoomType) error
	Delete(ctx context.Context, id uint64) error
}

type ServiceStore interface {
	Create(ctx context.Context, s *model.Service) error
	GetByID(ctx context.Context, id uint64) (*model.Service, error)
	List(ctx context.Context, p repository.Page) ([]model.Service, int, error)
	Delete(ctx context.Context, id uint64) error
}

// ServiceUpdater re-prices a service. service.CatalogService implements it.
type ServiceUpdater interface {
	UpdateService(ctx context.Context, id uint64, in service.ServiceInput) (*model.Service, error)
}

// CatalogHandler serves /v1/roomtypes and /v1/services.
type CatalogHandler struct {
	RoomTypes RoomTypeStore
	Services  ServiceStore
	Pricing   ServiceUpdater
	Log       *zap.Logger
}

func NewCatalogHandler(types RoomTypeStore, services ServiceStore, pricing ServiceUpdater, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{RoomTypes: types, Services: services, Pricing: pricing, Log: log}
}

type roomTypeReq struct {
	Name      string      `json:"name" validate:"required,max=50"`
	RentPrice model.Money `json:"rent_price" validate:"gte=0"`
}

type serviceReq struct {
	Name      string      `json:"name" validate:"required,max=100"`
	UnitPrice model.Money `json:"unit_price" validate:"gte=0"`
}

func (h *CatalogHandler) ListRoomTypes(c echo.Context) error {
	p := pageFrom(c)
	items, total, err := h.RoomTypes.List(c.Request().Context(), p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *CatalogHandler) GetRoomType(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	t, err := h.RoomTypes.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *CatalogHandler) CreateRoomType(c echo.Context) error {
	var req roomTypeReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	t := model.RoomType{Name: strings.TrimSpace(req.Name), RentPrice: req.RentPrice}
	if err := h.RoomTypes.Create(c.Request().Context(), &t); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *CatalogHandler) UpdateRoomType(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req roomTypeReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	t := model.RoomType{ID: id, Name: strings.TrimSpace(req.Name), RentPrice: req.RentPrice}
	if err := h.RoomTypes.Update(c.Request().Context(), &t); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *CatalogHandler) DeleteRoomType(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.RoomTypes.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ListServices(c echo.Context) error {
	p := pageFrom(c)
	items, total, err := h.Services.List(c.Request().Context(), p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *CatalogHandler) GetService(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	s, err := h.Services.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req serviceReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	s := model.Service{Name: strings.TrimSpace(req.Name), UnitPrice: req.UnitPrice}
	if err := h.Services.Create(c.Request().Context(), &s); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateService handles PUT /v1/services/:id. A new unit price is pushed
// into the totals of every invoice billing the service.
func (h *CatalogHandler) UpdateService(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req serviceReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	s, err := h.Pricing.UpdateService(c.Request().Context(), id, service.ServiceInput{Name: req.Name, UnitPrice: req.UnitPrice})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *CatalogHandler) DeleteService(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Services.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
