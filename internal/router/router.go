// Package router wires handlers and middleware onto echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dorm-management/internal/handler"
	"github.com/iliyamo/dorm-management/internal/middleware"
	"github.com/iliyamo/dorm-management/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Health      echo.HandlerFunc
	Auth        *handler.AuthHandler
	Students    *handler.StudentHandler
	Catalog     *handler.CatalogHandler
	Rooms       *handler.RoomHandler
	Contracts   *handler.ContractHandler
	Usages      *handler.UsageHandler
	Invoices    *handler.InvoiceHandler
	Maintenance *handler.MaintenanceHandler
}

// RegisterRoutes mounts /healthz, and /v1/auth/login in the open and every
// other route behind JWTAuth plus the ADMIN role. extra runs after auth on
// the protected group (rate limit, response cache).
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, extra ...echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	e.POST("/v1/auth/login", h.Auth.Login)

	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	v1.Use(extra...)

	v1.POST("/auth/register", h.Auth.Register)
	v1.GET("/me", h.Auth.Me)

	v1.GET("/students", h.Students.List)
	v1.POST("/students", h.Students.Create)
	v1.GET("/students/:id", h.Students.Get)
	v1.PUT("/students/:id", h.Students.Update)
	v1.DELETE("/students/:id", h.Students.Delete)

	v1.GET("/roomtypes", h.Catalog.ListRoomTypes)
	v1.POST("/roomtypes", h.Catalog.CreateRoomType)
	v1.GET("/roomtypes/:id", h.Catalog.GetRoomType)
	v1.PUT("/roomtypes/:id", h.Catalog.UpdateRoomType)
	v1.DELETE("/roomtypes/:id", h.Catalog.DeleteRoomType)

	v1.GET("/services", h.Catalog.ListServices)
	v1.POST("/services", h.Catalog.CreateService)
	v1.GET("/services/:id", h.Catalog.GetService)
	v1.PUT("/services/:id", h.Catalog.UpdateService)
	v1.DELETE("/services/:id", h.Catalog.DeleteService)

	// static segments win over :id in echo's router
	v1.GET("/rooms/available", h.Rooms.Available)
	v1.GET("/rooms", h.Rooms.List)
	v1.POST("/rooms", h.Rooms.Create)
	v1.GET("/rooms/:id", h.Rooms.Get)
	v1.PUT("/rooms/:id", h.Rooms.Update)
	v1.DELETE("/rooms/:id", h.Rooms.Delete)
	v1.GET("/rooms/:id/occupancy", h.Rooms.Occupancy)
	v1.GET("/rooms/:id/details", h.Rooms.Details)

	v1.GET("/contracts", h.Contracts.List)
	v1.POST("/contracts", h.Contracts.Create)
	v1.GET("/contracts/:id", h.Contracts.Get)
	v1.PUT("/contracts/:id", h.Contracts.Update)
	v1.DELETE("/contracts/:id", h.Contracts.Delete)
	v1.GET("/contracts/:id/details", h.Contracts.Details)

	v1.GET("/serviceusages", h.Usages.List)
	v1.POST("/serviceusages", h.Usages.Create)
	v1.GET("/serviceusages/:id", h.Usages.Get)
	v1.PUT("/serviceusages/:id", h.Usages.Update)
	v1.DELETE("/serviceusages/:id", h.Usages.Delete)

	v1.GET("/invoices", h.Invoices.List)
	v1.POST("/invoices", h.Invoices.Create)
	v1.GET("/invoices/:id", h.Invoices.Get)
	v1.PUT("/invoices/:id", h.Invoices.Update)
	v1.DELETE("/invoices/:id", h.Invoices.Delete)
	v1.GET("/invoices/:id/details", h.Invoices.Details)
	v1.POST("/invoices/:id/recalculate", h.Invoices.Recalculate)

	v1.POST("/maintenance/rooms/refresh", h.Maintenance.RefreshRooms)
	v1.POST("/maintenance/invoices/recalculate", h.Maintenance.RecalculateInvoices)
}
