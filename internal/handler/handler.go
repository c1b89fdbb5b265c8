// Package handler holds the echo HTTP handlers. Handlers bind and validate
// the request, call a repository for reads or a service for guarded
// writes, and map errors onto status codes.
package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

// Paged is the envelope of every list endpoint.
type Paged[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

func newPaged[T any](items []T, total int, p repository.Page) Paged[T] {
	if items == nil {
		items = []T{}
	}
	return Paged[T]{Items: items, Total: total, Page: p.Page, Size: p.Size, Pages: p.Pages(total)}
}

// pageFrom reads ?page= and ?size=. Missing or malformed values fall back
// to the defaults and out-of-range values are clamped.
func pageFrom(c echo.Context) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	return repository.NewPage(page, size)
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryID parses an optional numeric filter. Absent means 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// Validator adapts validator/v10 to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

// invalidBody is a request body that failed to decode or validate.
type invalidBody struct {
	msg    string
	fields map[string]string
}

func (e *invalidBody) Error() string { return e.msg }

// bind decodes the body into dst and runs the struct validator.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return &invalidBody{msg: "invalid request body"}
	}
	if err := c.Validate(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return &invalidBody{msg: err.Error()}
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return &invalidBody{msg: "validation failed", fields: fields}
	}
	return nil
}

// reasoner is implemented by conflict errors that carry a machine reason.
type reasoner interface{ Reason() string }

// respondError maps domain and repository errors onto status codes.
// Unknown errors are logged and hidden behind a generic 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		he *echo.HTTPError
		ib *invalidBody
		ve *service.ValidationError
		rs reasoner
	)
	switch {
	case errors.As(err, &he):
		return c.JSON(he.Code, echo.Map{"error": he.Message})
	case errors.As(err, &ib):
		body := echo.Map{"error": ib.msg}
		if len(ib.fields) > 0 {
			body["fields"] = ib.fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.As(err, &rs):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "reason": rs.Reason()})
	case errors.Is(err, repository.ErrInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "reason": "in_use"})
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "reason": "duplicate"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
