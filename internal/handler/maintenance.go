package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/service"
)

type RoomRefresher interface {
	RefreshAll(ctx context.Context) (service.RefreshSummary, error)
}

type InvoiceRecalculator interface {
	RecalculateAll(ctx context.Context) (service.RecalcSummary, error)
}

// MaintenanceHandler exposes the bulk repair jobs that dormctl also runs.
type MaintenanceHandler struct {
	Rooms    RoomRefresher
	Invoices InvoiceRecalculator
	Log      *zap.Logger
}

func NewMaintenanceHandler(rooms RoomRefresher, invoices InvoiceRecalculator, log *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{Rooms: rooms, Invoices: invoices, Log: log}
}

// RefreshRooms handles POST /v1/maintenance/rooms/refresh.
func (h *MaintenanceHandler) RefreshRooms(c echo.Context) error {
	sum, err := h.Rooms.RefreshAll(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.Info("room statuses refreshed", zap.Int("rooms", sum.Rooms), zap.Int("changed", sum.Changed))
	return c.JSON(http.StatusOK, sum)
}

// RecalculateInvoices handles POST /v1/maintenance/invoices/recalculate.
func (h *MaintenanceHandler) RecalculateInvoices(c echo.Context) error {
	sum, err := h.Invoices.RecalculateAll(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.Info("invoice totals recalculated", zap.Int("invoices", sum.Invoices), zap.Int("changed", sum.Changed))
	return c.JSON(http.StatusOK, sum)
}
