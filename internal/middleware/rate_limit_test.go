package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func limitedEcho(rl *UserRateLimiter, userID int64) *echo.Echo {
	e := echo.New()
	setUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID > 0 {
				c.Set(CtxUserIDKey, userID)
			}
			return next(c)
		}
	}
	e.POST("/orders", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, setUser, UserRateLimit(rl))
	return e
}

func post(e *echo.Echo) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	return rec.Code
}

func TestUserRateLimit_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewUserRateLimiter(6, 2)
	rl.now = func() time.Time { return now }
	e := limitedEcho(rl, 1)

	assert.Equal(t, http.StatusCreated, post(e))
	assert.Equal(t, http.StatusCreated, post(e))
	assert.Equal(t, http.StatusTooManyRequests, post(e))

	// 6回/分 = 10秒で1つ戻る
	now = now.Add(10 * time.Second)
	assert.Equal(t, http.StatusCreated, post(e))
	assert.Equal(t, http.StatusTooManyRequests, post(e))
}

func TestUserRateLimit_PerUser(t *testing.T) {
	rl := NewUserRateLimiter(1, 1)

	assert.Equal(t, http.StatusCreated, post(limitedEcho(rl, 1)))
	assert.Equal(t, http.StatusTooManyRequests, post(limitedEcho(rl, 1)))
	assert.Equal(t, http.StatusCreated, post(limitedEcho(rl, 2)))
}

func TestUserRateLimit_RequiresUser(t *testing.T) {
	rl := NewUserRateLimiter(1, 1)
	assert.Equal(t, http.StatusUnauthorized, post(limitedEcho(rl, 0)))
}

func TestUserRateLimiter_SweepsIdleUsers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewUserRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.allow(1)
	now = now.Add(11 * time.Minute)
	rl.allow(2)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.users, int64(1))
	assert.Contains(t, rl.users, int64(2))
}

func TestUserRateLimiter_SweepsAtMostOncePerIdleTTL(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := t0
	rl := NewUserRateLimiter(60, 1)
	rl.now = func() time.Time { return now }

	has := func(id int64) bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		_, ok := rl.users[id]
		return ok
	}

	rl.allow(1)
	now = t0.Add(10 * time.Minute)
	rl.allow(2) // ここでsweep。1はちょうど10分なので残る
	assert.True(t, has(1))

	// 前回のsweepから5分。1はもう期限切れだがまだ掃除しない
	now = t0.Add(15 * time.Minute)
	rl.allow(3)
	assert.True(t, has(1))

	now = t0.Add(20 * time.Minute)
	rl.allow(3)
	assert.False(t, has(1))
	assert.True(t, has(2))
	assert.True(t, has(3))
}
