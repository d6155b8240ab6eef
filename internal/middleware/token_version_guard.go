package middleware

import (
	"ecbackend/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionを比べる。
// 一致しなければ失効済みのトークンとして401（強制ログアウト）。
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return unauthorized(c)
			}
			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil || !user.IsActive || user.TokenVersion != tv {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}
