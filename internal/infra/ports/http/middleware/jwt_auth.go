package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/MentorCall/internal/infra/appctx"
)

const cookieName = "jwt"

// JWTAuthMiddleware принимает токен из cookie jwt или заголовка Authorization: Bearer
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := tokenFromRequest(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			}

			claims := &appctx.Claims{}

			token, err := jwt.ParseWithClaims(
				raw,
				claims,
				func(token *jwt.Token) (any, error) {
					return []byte(secret), nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid subject"})
			}

			ctx := appctx.WithUserID(c.Request().Context(), userID)
			ctx = appctx.WithRole(ctx, claims.Role)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) (string, bool) {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || token == "" {
		return "", false
	}

	return token, true
}
