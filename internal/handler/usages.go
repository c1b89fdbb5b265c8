package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

type UsageStore interface {
	GetByID(ctx context.Context, id uint64) (*model.ServiceUsage, error)
	List(ctx context.Context, f repository.UsageFilter, p repository.Page) ([]model.ServiceUsage, int, error)
}

// UsageWriter keeps invoice totals in step with usage writes.
// service.UsageService implements it.
type UsageWriter interface {
	Create(ctx context.Context, in service.UsageInput) (*model.ServiceUsage, error)
	Update(ctx context.Context, id uint64, in service.UsageInput) (*model.ServiceUsage, error)
	Delete(ctx context.Context, id uint64) error
}

// UsageHandler serves /v1/serviceusages.
type UsageHandler struct {
	Usages UsageStore
	Svc    UsageWriter
	Log    *zap.Logger
}

func NewUsageHandler(usages UsageStore, svc UsageWriter, log *zap.Logger) *UsageHandler {
	return &UsageHandler{Usages: usages, Svc: svc, Log: log}
}

type usageReq struct {
	ContractID uint64  `json:"contract_id" validate:"required"`
	ServiceID  uint64  `json:"service_id" validate:"required"`
	InvoiceID  *uint64 `json:"invoice_id" validate:"omitempty,min=1"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
	UsageMonth int     `json:"usage_month" validate:"required,min=1,max=12"`
	UsageYear  int     `json:"usage_year" validate:"required,min=2000,max=2100"`
}

func (r usageReq) input() service.UsageInput {
	return service.UsageInput{
		ContractID: r.ContractID,
		ServiceID:  r.ServiceID,
		InvoiceID:  r.InvoiceID,
		Quantity:   r.Quantity,
		UsageMonth: r.UsageMonth,
		UsageYear:  r.UsageYear,
	}
}

// List handles GET /v1/serviceusages?contract_id=&invoice_id=&unbilled=true.
func (h *UsageHandler) List(c echo.Context) error {
	var f repository.UsageFilter
	var err error
	if f.ContractID, err = queryID(c, "contract_id"); err != nil {
		return respondError(c, h.Log, err)
	}
	if f.InvoiceID, err = queryID(c, "invoice_id"); err != nil {
		return respondError(c, h.Log, err)
	}
	f.Unbilled = c.QueryParam("unbilled") == "true"
	p := pageFrom(c)
	items, total, err := h.Usages.List(c.Request().Context(), f, p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *UsageHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Usages.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UsageHandler) Create(c echo.Context) error {
	var req usageReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UsageHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req usageReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Svc.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UsageHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
