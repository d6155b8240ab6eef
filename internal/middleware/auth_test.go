package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ecbackend/internal/config"
	"ecbackend/internal/domain/model"
	"ecbackend/internal/middleware"
	"ecbackend/internal/repository"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =====================
// helper
// =====================

const testSecret = "test-secret"

func mustMakeJWT(t *testing.T, secret string, sub int64, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// ctxに入った値をそのまま返す
func echoContextHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, mwOKResponse{
		UserID:       c.Get(middleware.CtxUserIDKey).(int64),
		Role:         c.Get(middleware.CtxUserRoleKey).(string),
		TokenVersion: c.Get(middleware.CtxTokenVersionKey).(int),
	})
}

func newAuthEcho(guards ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	mws := append([]echo.MiddlewareFunc{middleware.AuthJWT(config.Config{JWTSecret: testSecret})}, guards...)
	e.GET("/protected", echoContextHandler, mws...)
	return e
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"empty token", "Bearer  "},
		{"bad signature", "Bearer " + mustMakeJWT(t, "other-secret", 1, "USER", 0, jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + mustMakeJWT(t, testSecret, 1, "USER", 0, jwt.SigningMethodHS512)},
		{"no role", "Bearer " + mustMakeJWT(t, testSecret, 1, "", 0, jwt.SigningMethodHS256)},
		{"bad sub", "Bearer " + mustMakeJWT(t, testSecret, 0, "USER", 0, jwt.SigningMethodHS256)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequest(t, newAuthEcho(), http.MethodGet, "/protected", tc.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

func TestAuthJWT_SetsIdentity(t *testing.T) {
	token := mustMakeJWT(t, testSecret, 42, "ADMIN", 3, jwt.SigningMethodHS256)

	rec := runRequest(t, newAuthEcho(), http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
	assert.Equal(t, 3, body.TokenVersion)
}

// =====================
// TokenVersionGuard
// =====================

func TestTokenVersionGuard_MissingContext(t *testing.T) {
	userRepo := new(MockUserRepo)
	e := echo.New()
	e.GET("/protected", echoContextHandler, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestTokenVersionGuard_Mismatch(t *testing.T) {
	userRepo := new(MockUserRepo)
	userRepo.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7, TokenVersion: 2, IsActive: true}, nil)

	token := mustMakeJWT(t, testSecret, 7, "USER", 1, jwt.SigningMethodHS256)
	rec := runRequest(t, newAuthEcho(middleware.TokenVersionGuard(userRepo)), http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestTokenVersionGuard_UnknownUser(t *testing.T) {
	userRepo := new(MockUserRepo)
	userRepo.On("FindByID", mock.Anything, int64(7)).Return(nil, nil)

	token := mustMakeJWT(t, testSecret, 7, "USER", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, newAuthEcho(middleware.TokenVersionGuard(userRepo)), http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenVersionGuard_InactiveUser(t *testing.T) {
	userRepo := new(MockUserRepo)
	userRepo.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7, TokenVersion: 0, IsActive: false}, nil)

	token := mustMakeJWT(t, testSecret, 7, "USER", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, newAuthEcho(middleware.TokenVersionGuard(userRepo)), http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenVersionGuard_Match(t *testing.T) {
	userRepo := new(MockUserRepo)
	userRepo.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7, TokenVersion: 1, IsActive: true}, nil)

	token := mustMakeJWT(t, testSecret, 7, "USER", 1, jwt.SigningMethodHS256)
	rec := runRequest(t, newAuthEcho(middleware.TokenVersionGuard(userRepo)), http.MethodGet, "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	e := newAuthEcho(middleware.AdminRoleGuard())

	user := mustMakeJWT(t, testSecret, 1, "USER", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)

	admin := mustMakeJWT(t, testSecret, 2, "ADMIN", 0, jwt.SigningMethodHS256)
	rec = runRequest(t, e, http.MethodGet, "/protected", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}
