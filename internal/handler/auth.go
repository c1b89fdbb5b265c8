package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/middleware"
	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/utils"
)

type UserStore interface {
	Create(ctx context.Context, username, password, role string, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
	Log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, users UserStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Log: log}
}

type credentialsReq struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

func (h *AuthHandler) issue(c echo.Context, status int, u userPart) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(status, authResp{User: u, Access: tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Register creates another admin account. It sits behind JWTAuth; the
// first admin is created with `dormctl create-admin`.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := bind(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, model.RoleAdmin, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists", "reason": "duplicate"})
		}
		return respondError(c, h.Log, err)
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	return h.issue(c, http.StatusCreated, userPart{ID: uid, Username: username, Role: model.RoleAdmin})
}

// Login verifies the password and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, http.StatusOK, userPart{ID: u.ID, Username: u.Username, Role: u.Role})
}

// Me returns the account behind the current token. A token whose user
// has since been deleted is treated as unauthorized.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Username: u.Username, Role: u.Role})
}
