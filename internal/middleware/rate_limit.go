package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ユーザーごとのトークンバケット。
// 最後に使われてからidleTTL経ったものはsweepで消す（sweepはidleTTLに1回まで）。
type UserRateLimiter struct {
	mu        sync.Mutex
	users     map[int64]*userLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// perMinute回/分、burstまでまとめて許す
func NewUserRateLimiter(perMinute int, burst int) *UserRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		users:   make(map[int64]*userLimiter),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (rl *UserRateLimiter) allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.users[userID] = u
	}
	u.lastSeen = now
	if rl.lastSweep.IsZero() {
		rl.lastSweep = now
	}
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweep(now)
	}
	return u.limiter.AllowN(now, 1)
}

// 呼び出し側でmuを持っていること
func (rl *UserRateLimiter) sweep(now time.Time) {
	for id, u := range rl.users {
		if now.Sub(u.lastSeen) > rl.idleTTL {
			delete(rl.users, id)
		}
	}
	rl.lastSweep = now
}

// AuthJWTの後ろに置く（user_idで数える）
func UserRateLimit(rl *UserRateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return unauthorized(c)
			}

			if !rl.allow(userID) {
				c.Response().Header().Set("Retry-After", "60")
				return c.JSON(http.StatusTooManyRequests, errorJSON("too many requests"))
			}

			return next(c)
		}
	}
}
