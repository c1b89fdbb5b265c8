package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

type ContractStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Contract, error)
	List(ctx context.Context, f repository.ContractFilter, p repository.Page) ([]repository.ContractListItem, int, error)
	Details(ctx context.Context, id uint64) (*repository.ContractDetails, error)
}

// LineItemStore prices usages for detail views.
type LineItemStore interface {
	LineItemsByContract(ctx context.Context, contractID uint64) ([]model.LineItem, error)
	LineItemsByInvoice(ctx context.Context, invoiceID uint64) ([]model.LineItem, error)
}

// ContractWriter is the admission-guarded write path.
// service.ContractService implements it.
type ContractWriter interface {
	Create(ctx context.Context, p service.Proposal) (*model.Contract, error)
	Update(ctx context.Context, id uint64, p service.Proposal) (*model.Contract, error)
	Delete(ctx context.Context, id uint64) error
}

// ContractHandler serves /v1/contracts.
type ContractHandler struct {
	Contracts ContractStore
	LineItems LineItemStore
	Svc       ContractWriter
	Log       *zap.Logger
}

func NewContractHandler(contracts ContractStore, items LineItemStore, svc ContractWriter, log *zap.Logger) *ContractHandler {
	return &ContractHandler{Contracts: contracts, LineItems: items, Svc: svc, Log: log}
}

type contractReq struct {
	StudentID uint64     `json:"student_id" validate:"required"`
	RoomID    uint64     `json:"room_id" validate:"required"`
	StartDate model.Date `json:"start_date"`
	EndDate   model.Date `json:"end_date"`
}

func (r contractReq) proposal() service.Proposal {
	return service.Proposal{StudentID: r.StudentID, RoomID: r.RoomID, Start: r.StartDate, End: r.EndDate}
}

// List handles GET /v1/contracts?student_id=&room_id=&page=&size=. Each
// item carries its room number and student name.
func (h *ContractHandler) List(c echo.Context) error {
	var f repository.ContractFilter
	var err error
	if f.StudentID, err = queryID(c, "student_id"); err != nil {
		return respondError(c, h.Log, err)
	}
	if f.RoomID, err = queryID(c, "room_id"); err != nil {
		return respondError(c, h.Log, err)
	}
	p := pageFrom(c)
	items, total, err := h.Contracts.List(c.Request().Context(), f, p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *ContractHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ct, err := h.Contracts.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ct)
}

// Details handles GET /v1/contracts/:id/details.
func (h *ContractHandler) Details(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx := c.Request().Context()
	d, err := h.Contracts.Details(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if d.Usages, err = h.LineItems.LineItemsByContract(ctx, id); err != nil {
		return respondError(c, h.Log, fmt.Errorf("usages of contract %d: %w", id, err))
	}
	return c.JSON(http.StatusOK, d)
}

func (h *ContractHandler) Create(c echo.Context) error {
	var req contractReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	ct, err := h.Svc.Create(c.Request().Context(), req.proposal())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ct)
}

func (h *ContractHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req contractReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	ct, err := h.Svc.Update(c.Request().Context(), id, req.proposal())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ct)
}

// Delete handles DELETE /v1/contracts/:id. The contract's service usages
// go with it.
func (h *ContractHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
