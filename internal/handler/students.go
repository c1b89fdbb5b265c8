package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
)

type StudentStore interface {
	Create(ctx context.Context, s *model.Student) error
	GetByID(ctx context.Context, id uint64) (*model.Student, error)
	List(ctx context.Context, q string, p repository.Page) ([]model.Student, int, error)
	Update(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id uint64) error
}

// StudentHandler serves /v1/students.
type StudentHandler struct {
	Students StudentStore
	Log      *zap.Logger
}

func NewStudentHandler(students StudentStore, log *zap.Logger) *StudentHandler {
	return &StudentHandler{Students: students, Log: log}
}

type studentReq struct {
	FullName    string `json:"full_name" validate:"required,max=100"`
	Gender      string `json:"gender" validate:"required,oneof=Male Female"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=10,numeric"`
}

func (r studentReq) model() model.Student {
	return model.Student{
		FullName:    strings.TrimSpace(r.FullName),
		Gender:      r.Gender,
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
}

// List handles GET /v1/students?q=&page=&size=. q matches part of the name.
func (h *StudentHandler) List(c echo.Context) error {
	p := pageFrom(c)
	items, total, err := h.Students.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")), p)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newPaged(items, total, p))
}

func (h *StudentHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	s, err := h.Students.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *StudentHandler) Create(c echo.Context) error {
	var req studentReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	s := req.model()
	if err := h.Students.Create(c.Request().Context(), &s); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *StudentHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var req studentReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	s := req.model()
	s.ID = id
	if err := h.Students.Update(c.Request().Context(), &s); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Delete handles DELETE /v1/students/:id. A student with contracts is in
// use and answers 409.
func (h *StudentHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Students.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
