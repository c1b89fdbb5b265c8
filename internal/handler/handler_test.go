package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/middleware"
	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
	"github.com/iliyamo/dorm-management/internal/utils"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func do(e *echo.Echo, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type fakeStudents struct {
	rows   map[uint64]model.Student
	inUse  map[uint64]bool
	total  int
	lastQ  string
	nextID uint64
}

func newFakeStudents() *fakeStudents {
	return &fakeStudents{rows: map[uint64]model.Student{}, inUse: map[uint64]bool{}}
}

func (f *fakeStudents) Create(_ context.Context, s *model.Student) error {
	f.nextID++
	s.ID = f.nextID
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeStudents) GetByID(_ context.Context, id uint64) (*model.Student, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrStudentNotFound
	}
	return &s, nil
}

func (f *fakeStudents) List(_ context.Context, q string, p repository.Page) ([]model.Student, int, error) {
	f.lastQ = q
	var out []model.Student
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, f.total, nil
}

func (f *fakeStudents) Update(_ context.Context, s *model.Student) error {
	if _, ok := f.rows[s.ID]; !ok {
		return repository.ErrStudentNotFound
	}
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeStudents) Delete(_ context.Context, id uint64) error {
	if f.inUse[id] {
		return repository.ErrInUse
	}
	if _, ok := f.rows[id]; !ok {
		return repository.ErrStudentNotFound
	}
	delete(f.rows, id)
	return nil
}

func studentRoutes(store *fakeStudents) *echo.Echo {
	e := newEcho()
	h := NewStudentHandler(store, zap.NewNop())
	e.GET("/v1/students", h.List)
	e.POST("/v1/students", h.Create)
	e.GET("/v1/students/:id", h.Get)
	e.PUT("/v1/students/:id", h.Update)
	e.DELETE("/v1/students/:id", h.Delete)
	return e
}

func TestStudentCreateAndGet(t *testing.T) {
	store := newFakeStudents()
	e := studentRoutes(store)

	rec := do(e, http.MethodPost, "/v1/students", `{"full_name":" Jane Smith ","gender":"Female","phone_number":"2345678901"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"full_name":"Jane Smith","gender":"Female","phone_number":"2345678901"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/v1/students/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/v1/students/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"student not found"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/v1/students/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid id"}`, rec.Body.String())
}

func TestStudentValidationReportsJSONFields(t *testing.T) {
	e := studentRoutes(newFakeStudents())

	rec := do(e, http.MethodPost, "/v1/students", `{"full_name":"","gender":"Other","phone_number":"12345678901"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, map[string]any{"full_name": "required", "gender": "oneof", "phone_number": "max"}, body["fields"])

	rec = do(e, http.MethodPost, "/v1/students", `{"full_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
}

func TestStudentListEnvelope(t *testing.T) {
	store := newFakeStudents()
	store.rows[1] = model.Student{ID: 1, FullName: "John Doe", Gender: model.GenderMale}
	store.total = 25
	e := studentRoutes(store)

	rec := do(e, http.MethodGet, "/v1/students?q=%20john%20&page=2&size=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(25), body["total"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(10), body["size"])
	assert.Equal(t, float64(3), body["pages"])
	assert.Len(t, body["items"], 1)
	assert.Equal(t, "john", store.lastQ)

	store.rows = map[uint64]model.Student{}
	store.total = 0
	rec = do(e, http.MethodGet, "/v1/students?size=500", "")
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"size":100,"pages":0}`, rec.Body.String())
}

func TestStudentDeleteInUse(t *testing.T) {
	store := newFakeStudents()
	store.rows[4] = model.Student{ID: 4}
	store.rows[5] = model.Student{ID: 5}
	store.inUse[4] = true
	e := studentRoutes(store)

	rec := do(e, http.MethodDelete, "/v1/students/4", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "in_use", decode(t, rec)["reason"])

	rec = do(e, http.MethodDelete, "/v1/students/5", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type stubContracts struct {
	err  error
	seen service.Proposal
}

func (s *stubContracts) Create(_ context.Context, p service.Proposal) (*model.Contract, error) {
	s.seen = p
	if s.err != nil {
		return nil, s.err
	}
	return &model.Contract{ID: 10, StudentID: p.StudentID, RoomID: p.RoomID, StartDate: p.Start, EndDate: p.End}, nil
}

func (s *stubContracts) Update(_ context.Context, id uint64, p service.Proposal) (*model.Contract, error) {
	return nil, s.err
}

func (s *stubContracts) Delete(_ context.Context, id uint64) error { return s.err }

func TestContractCreateMapsDomainErrors(t *testing.T) {
	const body = `{"student_id":3,"room_id":7,"start_date":"2024-05-01","end_date":"2024-12-31"}`
	cases := []struct {
		name   string
		err    error
		status int
		want   map[string]any
	}{
		{"admitted", nil, http.StatusCreated, nil},
		{"full room", &service.RoomAtCapacityError{RoomID: 7, Current: 2, Max: 2}, http.StatusConflict,
			map[string]any{"error": "room 7 is full (2/2)", "reason": "room_at_capacity"}},
		{"student housed", &service.StudentAlreadyActiveError{StudentID: 3, ContractID: 4}, http.StatusConflict,
			map[string]any{"error": "student 3 already has contract 4 in this period", "reason": "student_already_active"}},
		{"bad period", &service.ValidationError{Field: "end_date", Msg: "must not be before start_date"}, http.StatusBadRequest,
			map[string]any{"error": "end_date: must not be before start_date", "field": "end_date"}},
		{"missing room", repository.ErrRoomNotFound, http.StatusNotFound,
			map[string]any{"error": "room not found"}},
		{"driver failure", errors.New("connection reset"), http.StatusInternalServerError,
			map[string]any{"error": "internal error"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubContracts{err: tc.err}
			e := newEcho()
			h := NewContractHandler(nil, nil, svc, zap.NewNop())
			e.POST("/v1/contracts", h.Create)

			rec := do(e, http.MethodPost, "/v1/contracts", body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.want != nil {
				assert.Equal(t, tc.want, decode(t, rec))
			}
			assert.Equal(t, model.NewDate(2024, 5, 1), svc.seen.Start)
			assert.Equal(t, uint64(7), svc.seen.RoomID)
		})
	}
}

func TestContractCreateRejectsBadDate(t *testing.T) {
	svc := &stubContracts{}
	e := newEcho()
	h := NewContractHandler(nil, nil, svc, zap.NewNop())
	e.POST("/v1/contracts", h.Create)

	rec := do(e, http.MethodPost, "/v1/contracts", `{"student_id":3,"room_id":7,"start_date":"01/05/2024","end_date":"2024-12-31"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.seen.StudentID)
}

func TestRoomListRejectsUnknownStatus(t *testing.T) {
	e := newEcho()
	h := NewRoomHandler(nil, nil, zap.NewNop())
	e.GET("/v1/rooms", h.List)

	rec := do(e, http.MethodGet, "/v1/rooms?status=Closed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/rooms?room_type_id=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid room_type_id"}`, rec.Body.String())
}

type fakeUsers struct {
	byName map[string]*model.User
}

func (f *fakeUsers) Create(_ context.Context, username, password, role string, cost int) (uint64, error) {
	if _, ok := f.byName[username]; ok {
		return 0, repository.ErrDuplicate
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(f.byName) + 1)
	f.byName[username] = &model.User{ID: id, Username: username, PasswordHash: hash, Role: role}
	return id, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if u, ok := f.byName[strings.ToLower(strings.TrimSpace(username))]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func authRoutes(t *testing.T) (*echo.Echo, config.Config) {
	t.Helper()
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 5, BcryptCost: bcrypt.MinCost}
	users := &fakeUsers{byName: map[string]*model.User{}}
	_, err := users.Create(context.Background(), "warden", "correct horse", model.RoleAdmin, bcrypt.MinCost)
	require.NoError(t, err)

	e := newEcho()
	h := NewAuthHandler(cfg, users, zap.NewNop())
	e.POST("/v1/auth/login", h.Login)
	v1 := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleAdmin))
	v1.POST("/auth/register", h.Register)
	v1.GET("/me", h.Me)
	return e, cfg
}

func TestLogin(t *testing.T) {
	e, _ := authRoutes(t)

	rec := do(e, http.MethodPost, "/v1/auth/login", `{"username":"Warden","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "warden", user["username"])
	assert.Equal(t, "ADMIN", user["role"])
	token := body["access"].(map[string]any)["token"].(string)
	assert.NotEmpty(t, token)

	rec = do(e, http.MethodGet, "/v1/me", "", echo.HeaderAuthorization, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"username":"warden","role":"ADMIN"}`, rec.Body.String())

	for _, bad := range []string{
		`{"username":"warden","password":"battery staple"}`,
		`{"username":"nobody","password":"correct horse"}`,
		`{"username":"warden"}`,
	} {
		rec = do(e, http.MethodPost, "/v1/auth/login", bad)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, bad)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
	}
}

func TestRegisterNeedsAdminToken(t *testing.T) {
	e, cfg := authRoutes(t)
	const body = `{"username":"deputy","password":"another secret"}`

	rec := do(e, http.MethodPost, "/v1/auth/register", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken(cfg.JWTSecret, 1, model.RoleAdmin, 5)
	require.NoError(t, err)
	auth := "Bearer " + tok.Token

	rec = do(e, http.MethodPost, "/v1/auth/register", body, echo.HeaderAuthorization, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "deputy", decode(t, rec)["user"].(map[string]any)["username"])

	rec = do(e, http.MethodPost, "/v1/auth/register", body, echo.HeaderAuthorization, auth)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decode(t, rec)["reason"])
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := newEcho()
	e.GET("/up", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("dial tcp: refused")}))

	rec := do(e, http.MethodGet, "/up", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
