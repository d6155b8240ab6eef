package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ecbackend/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

// JWTから取り出した呼び出し元
type identity struct {
	userID       int64
	role         string
	tokenVersion int
}

var errBadClaims = errors.New("bad claims")

// Bearerトークン(HS256)を検証し、user_id/role/token_versionをcontextに入れる。
// 発行は別システム。ここでは検証だけ。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return unauthorized(c)
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				return unauthorized(c)
			}

			id, err := identityFromClaims(claims)
			if err != nil {
				return unauthorized(c)
			}

			c.Set(CtxUserIDKey, id.userID)
			c.Set(CtxUserRoleKey, id.role)
			c.Set(CtxTokenVersionKey, id.tokenVersion)
			return next(c)
		}
	}
}

// "Bearer <token>" からtokenを抜く
func bearerToken(authz string) (string, bool) {
	scheme, rest, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}

// sub(>0), role(空でない), tv(>=0) がそろっていること
func identityFromClaims(claims jwt.MapClaims) (identity, error) {
	userID, err := claimInt(claims["sub"])
	if err != nil || userID <= 0 {
		return identity{}, errBadClaims
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return identity{}, errBadClaims
	}
	tv, err := claimInt(claims["tv"])
	if err != nil || tv < 0 || tv > int64(^uint32(0)>>1) {
		return identity{}, errBadClaims
	}
	return identity{userID: userID, role: role, tokenVersion: int(tv)}, nil
}

// JSONの数値はfloat64で来る。文字列の数字も許す。
func claimInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, errBadClaims
		}
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errBadClaims
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
}
