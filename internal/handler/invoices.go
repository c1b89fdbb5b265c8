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

type InvoiceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Invoice, error)
	List(ctx context.Context, p repository.Page) ([]model.Invoice, int, error)
}

// InvoiceWriter derives totals on every write. service.InvoiceService
// implements it.
type InvoiceWriter interface {
	Create(ctx context.Context, in service.InvoiceInput) (*model.Invoice, error)
	Update(ctx context.Context, id uint64, in service.InvoiceInput) (*model.Invoice, error)
	Delete(ctx context.Context, id uint64) error
	Recalculate(ctx context.Context, id uint64) (model.Money, error)
	RecalculateAll(ctx context.Context) (service.RecalcSummary, error)
}

// InvoiceHandler serves /v1/invoices.
type InvoiceHandler struct {
	Invoices  InvoiceStore
	LineItems LineItemStore
	Svc       InvoiceWriter
	Log       *zap.Logger
}

func NewInvoiceHandler(invoices InvoiceStore, items LineItemStore, svc InvoiceWriter, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{Invoices: invoices, LineItems: items, Svc: svc, Log: log}
}

// invoiceReq never carries a total. service_usage_ids, when present,
// is the complete set of usages billed on the invoice.
type invoiceReq struct {
	CreatedDate model.Date `json:"created_date"`
	DueDate     model.Date `json:"due_date"`
	UsageIDs    []uint64   `json:"service_usage_ids" validate:"omitempty,dive,min=1"`
}

func (r invoiceReq) input() service.InvoiceInput {
	return service.InvoiceInput{CreatedDate: r.CreatedDate, DueDate: r.DueDate, UsageIDs: r.UsageIDs}
}

func (h *InvoiceHandler) List(c echo.Context) error {
	p := pageFrom(c)
	items, total, err := h.Invoices.List(c.Request().Context(), p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *InvoiceHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	inv, err := h.Invoices.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, inv)
}

// Details handles GET /v1/invoices/:id/details: the invoice with each
// billed usage priced at the service's current unit price.
func (h *InvoiceHandler) Details(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	ctx := c.Request().Context()
	inv, err := h.Invoices.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items, err := h.LineItems.LineItemsByInvoice(ctx, id)
	if err != nil {
		return respondError(c, h.Log, fmt.Errorf("line items of invoice %d: %w", id, err))
	}
	return c.JSON(http.StatusOK, repository.InvoiceDetails{Invoice: *inv, LineItems: items})
}

func (h *InvoiceHandler) Create(c echo.Context) error {
	var req invoiceReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	inv, err := h.Svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req invoiceReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	inv, err := h.Svc.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Recalculate handles POST /v1/invoices/:id/recalculate.
func (h *InvoiceHandler) Recalculate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	total, err := h.Svc.Recalculate(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "total_amount": total})
}
